package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/overture/curator/internal/config"
	"github.com/ewilliams-labs/overture/curator/internal/logging"
)

// commandContext lazily loads configuration shared by every subcommand.
type commandContext struct {
	configPath *string
	cfg        *config.Config
	logger     zerolog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != nil && *c.configPath != "" {
		cfg, err = config.LoadFile(*c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configPath: &configFlag, logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:           "curator",
		Short:         "Overture mood playlist curator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default: $CURATOR_CONFIG or ./config.yaml)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newGenerateCommand(ctx))

	return rootCmd
}
