package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 0.75, cfg.Orchestrator.CohesionThreshold)
	assert.Equal(t, 12, cfg.Engine.MaxArtists)
	assert.Equal(t, 8, cfg.Ordering.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Spotify.TopTracksInterval)
	assert.False(t, cfg.Advisory.Enabled)

	assert.Equal(t, cfg.Engine.ArtistCapRatio, cfg.RecommendEngine().ArtistCapRatio)
	assert.Equal(t, cfg.Orchestrator.AdvisoryBlend, cfg.OrchestratorLoop().AdvisoryBlend)
	assert.Equal(t, cfg.Spotify.Market, cfg.SpotifyClient().Market)
	assert.Equal(t, cfg.Advisory.Model, cfg.AdvisoryClient().Model)
	assert.Equal(t, cfg.Ordering.MaxConcurrency, cfg.Orderer().MaxConcurrency)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  addr: ":9090"
engine:
  max_artists: 8
orchestrator:
  max_iterations: 5
  cohesion_threshold: 0.8
spotify:
  retry_backoff: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CURATOR_ENGINE_MAX_ARTISTS", "20")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("STORAGE_PATH", "/tmp/journal.db")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Engine.MaxArtists, "env overrides the file")
	assert.Equal(t, 5, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 0.8, cfg.Orchestrator.CohesionThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Spotify.RetryBackoff)
	assert.Equal(t, "id", cfg.Spotify.ClientID)
	assert.Equal(t, "/tmp/journal.db", cfg.Storage.Path)
}

func TestLoadFile_OllamaHostEnablesAdvisory(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, cfg.Advisory.Enabled)
	assert.Equal(t, "http://ollama:11434", cfg.Advisory.BaseURL)

	t.Setenv("CURATOR_ADVISORY_ENABLED", "false")
	cfg, err = LoadFile("")
	require.NoError(t, err)
	assert.False(t, cfg.Advisory.Enabled, "explicit setting wins")
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero iterations", env: map[string]string{"CURATOR_ORCHESTRATOR_MAX_ITERATIONS": "0"}},
		{name: "threshold above one", env: map[string]string{"CURATOR_ORCHESTRATOR_OVERALL_THRESHOLD": "1.5"}},
		{name: "zero batch size", env: map[string]string{"CURATOR_ORDERING_BATCH_SIZE": "0"}},
		{name: "secret without id", env: map[string]string{"SPOTIFY_CLIENT_ID": "id"}},
		{name: "unknown log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "reseed floor above cohesion", env: map[string]string{"CURATOR_ORCHESTRATOR_RESEED_FLOOR": "0.9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile("")
			require.Error(t, err)
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "SPOTIFY_CLIENT_ID", want: "spotify.client_id"},
		{key: "OLLAMA_HOST", want: "advisory.base_url"},
		{key: "CURATOR_WORKER_QUEUE_SIZE", want: "worker.queue_size"},
		{key: "CURATOR_SERVER_ADDR", want: "server.addr"},
		{key: "CURATOR_UNKNOWN_THING", want: ""},
		{key: "PATH", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, envTransformFunc(tt.key))
		})
	}
}
