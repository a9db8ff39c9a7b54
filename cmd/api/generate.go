package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/overture/curator/internal/adapters/rest"
	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		moodPath string
		count    int
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a playlist from a mood file and print it as JSON",
		Long: "Reads a request in the POST /playlists/generate format (a JSON object with a\n" +
			"\"mood\" key plus optional seeds, anchors, count and strategy) and prints the\n" +
			"curated playlist. Use --mood - to read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			req, err := readGenerateRequest(cmd.InOrStdin(), moodPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				if count < 0 || count > 100 {
					return fmt.Errorf("--count must be between 0 and 100")
				}
				req.Count = count
			}
			if strategy != "" {
				if _, err := domain.ParseOrderingStrategy(strategy); err != nil {
					return err
				}
				req.Strategy = strategy
			}

			a, err := newApp(cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()

			playlist, err := a.curator.Curate(runCtx, req.Mood, req.Options())
			if err != nil {
				return err
			}
			return writeJSON(cmd, playlist)
		},
	}

	cmd.Flags().StringVarP(&moodPath, "mood", "m", "", "Path to the request JSON file, or - for stdin")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Override the requested track count")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Force an ordering strategy")
	_ = cmd.MarkFlagRequired("mood")

	return cmd
}

// readGenerateRequest decodes and validates a request from a file or stdin.
func readGenerateRequest(stdin io.Reader, path string) (rest.GenerateRequest, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return rest.GenerateRequest{}, fmt.Errorf("open mood file: %w", err)
		}
		defer f.Close()
		r = f
	}
	req, err := rest.DecodeGenerateRequest(r, nil)
	if err != nil {
		return rest.GenerateRequest{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
