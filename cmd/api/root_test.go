package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "generate")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	gen, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	assert.NotNil(t, gen.Flags().Lookup("mood"))
	assert.NotNil(t, gen.Flags().Lookup("count"))
}

func TestReadGenerateRequest(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "mood.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"mood": {"search_keywords": ["rainy", "lofi"], "prompt_text": "late night study"},
		"count": 12,
		"strategy": "chill_journey"
	}`), 0o600))
	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"mood": {}, "bogus": 1}`), 0o600))

	tests := []struct {
		name      string
		path      string
		stdin     string
		wantErr   bool
		wantCount int
	}{
		{name: "File", path: valid, wantCount: 12},
		{name: "Stdin", path: "-", stdin: `{"mood": {"search_keywords": ["chill"]}, "count": 5}`, wantCount: 5},
		{name: "Missing file", path: filepath.Join(dir, "nope.json"), wantErr: true},
		{name: "Unknown field", path: unknown, wantErr: true},
		{name: "Malformed", path: "-", stdin: `{"mood":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := readGenerateRequest(strings.NewReader(tt.stdin), tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, req.Count)
		})
	}
}

func TestWriteJSONIndents(t *testing.T) {
	root := newRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)

	require.NoError(t, writeJSON(root, map[string]int{"count": 3}))
	assert.Equal(t, "{\n  \"count\": 3\n}\n", buf.String())
}
