// Package config loads curator settings from defaults, an optional YAML file
// and the environment, in increasing priority.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ewilliams-labs/overture/curator/internal/adapters/ollama"
	"github.com/ewilliams-labs/overture/curator/internal/adapters/spotify"
	"github.com/ewilliams-labs/overture/curator/internal/core/ordering"
	"github.com/ewilliams-labs/overture/curator/internal/core/recommend"
	"github.com/ewilliams-labs/overture/curator/internal/core/services"
)

// Config is the full application configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Spotify      SpotifyConfig      `koanf:"spotify"`
	Advisory     AdvisoryConfig     `koanf:"advisory"`
	Storage      StorageConfig      `koanf:"storage"`
	Engine       EngineConfig       `koanf:"engine"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Ordering     OrderingConfig     `koanf:"ordering"`
	Worker       WorkerConfig       `koanf:"worker"`
}

type ServerConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// RequestTimeout bounds one playlist generation.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	// GenerateRateLimit is generate requests per minute per client IP; 0 disables.
	GenerateRateLimit int      `koanf:"generate_rate_limit" validate:"gte=0"`
	CORSOrigins       []string `koanf:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type SpotifyConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	TokenURL     string        `koanf:"token_url" validate:"required,url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret" validate:"required_with=ClientID"`
	Market       string        `koanf:"market" validate:"len=2"`
	MaxRetries   int           `koanf:"max_retries" validate:"gte=1,lte=10"`
	RetryBackoff time.Duration `koanf:"retry_backoff" validate:"gt=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	// TopTracksInterval spaces artist top-track calls across all requests.
	TopTracksInterval time.Duration `koanf:"top_tracks_interval" validate:"gte=0"`
}

type AdvisoryConfig struct {
	Enabled          bool          `koanf:"enabled"`
	BaseURL          string        `koanf:"base_url" validate:"omitempty,url"`
	Model            string        `koanf:"model" validate:"required_if=Enabled true"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	RatePerSecond    float64       `koanf:"rate_per_second" validate:"gt=0"`
	Burst            int           `koanf:"burst" validate:"gte=1"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	// Path of the SQLite run journal; empty disables journaling.
	Path string `koanf:"path"`
}

type EngineConfig struct {
	MaxArtists            int     `koanf:"max_artists" validate:"gte=1,lte=50"`
	TracksPerArtist       int     `koanf:"tracks_per_artist" validate:"gte=1,lte=10"`
	MentionedArtistTracks int     `koanf:"mentioned_artist_tracks" validate:"gte=1,lte=10"`
	MaxUnmentionedAnchors int     `koanf:"max_unmentioned_anchors" validate:"gte=0"`
	ArtistCapRatio        float64 `koanf:"artist_cap_ratio" validate:"gt=0,lte=1"`
	MinConfidence         float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`
	MinMoodMatch          float64 `koanf:"min_mood_match" validate:"gte=0,lte=1"`
	DiversityPenalty      float64 `koanf:"diversity_penalty" validate:"gte=0,lte=1"`
}

type OrchestratorConfig struct {
	MaxIterations     int     `koanf:"max_iterations" validate:"gte=1,lte=10"`
	CohesionThreshold float64 `koanf:"cohesion_threshold" validate:"gte=0,lte=1"`
	OverallThreshold  float64 `koanf:"overall_threshold" validate:"gte=0,lte=1"`
	ReseedFloor       float64 `koanf:"reseed_floor" validate:"gte=0,lte=1"`
	ReseedKeep        int     `koanf:"reseed_keep" validate:"gte=1"`
	WeightStep        float64 `koanf:"weight_step" validate:"gt=0"`
	WeightCeiling     float64 `koanf:"weight_ceiling" validate:"gte=1"`
	GenerateMoreMin   int     `koanf:"generate_more_min" validate:"gte=1"`
	MinCoverageRatio  float64 `koanf:"min_coverage_ratio" validate:"gt=0,lte=1"`
	DefaultCount      int     `koanf:"default_count" validate:"gte=1,lte=100"`
	AdvisoryBlend     float64 `koanf:"advisory_blend" validate:"gte=0,lte=1"`
}

type OrderingConfig struct {
	BatchSize      int `koanf:"batch_size" validate:"gte=1"`
	MaxConcurrency int `koanf:"max_concurrency" validate:"gte=1"`
}

type WorkerConfig struct {
	Workers   int `koanf:"workers" validate:"gte=1"`
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
}

func defaultConfig() *Config {
	engine := recommend.DefaultConfig()
	orch := services.DefaultOrchestratorConfig()
	ord := ordering.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 15 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RequestTimeout:    2 * time.Minute,
			GenerateRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Spotify: SpotifyConfig{
			BaseURL:           spotify.DefaultBaseURL,
			TokenURL:          spotify.DefaultTokenURL,
			Market:            "US",
			MaxRetries:        3,
			RetryBackoff:      500 * time.Millisecond,
			Timeout:           15 * time.Second,
			TopTracksInterval: 100 * time.Millisecond,
		},
		Advisory: AdvisoryConfig{
			Enabled:          false,
			BaseURL:          "http://localhost:11434",
			Model:            "deepseek-r1:8b",
			Timeout:          30 * time.Second,
			RatePerSecond:    2,
			Burst:            4,
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
		},
		Storage: StorageConfig{
			Path: "overture.db",
		},
		Engine: EngineConfig{
			MaxArtists:            engine.MaxArtists,
			TracksPerArtist:       engine.TracksPerArtist,
			MentionedArtistTracks: engine.MentionedArtistTracks,
			MaxUnmentionedAnchors: engine.MaxUnmentionedAnchors,
			ArtistCapRatio:        engine.ArtistCapRatio,
			MinConfidence:         engine.MinConfidence,
			MinMoodMatch:          engine.MinMoodMatch,
			DiversityPenalty:      engine.DiversityPenalty,
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:     orch.MaxIterations,
			CohesionThreshold: orch.CohesionThreshold,
			OverallThreshold:  orch.OverallThreshold,
			ReseedFloor:       orch.ReseedFloor,
			ReseedKeep:        orch.ReseedKeep,
			WeightStep:        orch.WeightStep,
			WeightCeiling:     orch.WeightCeiling,
			GenerateMoreMin:   orch.GenerateMoreMin,
			MinCoverageRatio:  orch.MinCoverageRatio,
			DefaultCount:      orch.DefaultCount,
			AdvisoryBlend:     orch.AdvisoryBlend,
		},
		Ordering: OrderingConfig{
			BatchSize:      ord.BatchSize,
			MaxConcurrency: ord.MaxConcurrency,
		},
		Worker: WorkerConfig{
			Workers:   2,
			QueueSize: 100,
		},
	}
}

// Validate checks ranges and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.Advisory.Enabled && c.Advisory.BaseURL == "" {
		return fmt.Errorf("advisory.base_url is required when advisory is enabled")
	}
	if c.Orchestrator.ReseedFloor > c.Orchestrator.CohesionThreshold {
		return fmt.Errorf("orchestrator.reseed_floor (%.2f) must not exceed cohesion_threshold (%.2f)",
			c.Orchestrator.ReseedFloor, c.Orchestrator.CohesionThreshold)
	}
	return nil
}

// SpotifyClient returns the catalog client settings.
func (c *Config) SpotifyClient() spotify.Config {
	return spotify.Config{
		BaseURL:      c.Spotify.BaseURL,
		TokenURL:     c.Spotify.TokenURL,
		ClientID:     c.Spotify.ClientID,
		ClientSecret: c.Spotify.ClientSecret,
		Market:       c.Spotify.Market,
		MaxRetries:   c.Spotify.MaxRetries,
		RetryBackoff: c.Spotify.RetryBackoff,
		Timeout:      c.Spotify.Timeout,
	}
}

// AdvisoryClient returns the advisory client settings.
func (c *Config) AdvisoryClient() ollama.Config {
	return ollama.Config{
		BaseURL:          c.Advisory.BaseURL,
		Model:            c.Advisory.Model,
		Timeout:          c.Advisory.Timeout,
		RatePerSecond:    c.Advisory.RatePerSecond,
		Burst:            c.Advisory.Burst,
		FailureThreshold: c.Advisory.FailureThreshold,
		OpenTimeout:      c.Advisory.OpenTimeout,
	}
}

// RecommendEngine returns the engine tuning.
func (c *Config) RecommendEngine() recommend.Config {
	return recommend.Config{
		MaxArtists:            c.Engine.MaxArtists,
		TracksPerArtist:       c.Engine.TracksPerArtist,
		MentionedArtistTracks: c.Engine.MentionedArtistTracks,
		MaxUnmentionedAnchors: c.Engine.MaxUnmentionedAnchors,
		ArtistCapRatio:        c.Engine.ArtistCapRatio,
		MinConfidence:         c.Engine.MinConfidence,
		MinMoodMatch:          c.Engine.MinMoodMatch,
		DiversityPenalty:      c.Engine.DiversityPenalty,
	}
}

// OrchestratorLoop returns the quality loop tuning.
func (c *Config) OrchestratorLoop() services.OrchestratorConfig {
	o := c.Orchestrator
	return services.OrchestratorConfig{
		MaxIterations:     o.MaxIterations,
		CohesionThreshold: o.CohesionThreshold,
		OverallThreshold:  o.OverallThreshold,
		ReseedFloor:       o.ReseedFloor,
		ReseedKeep:        o.ReseedKeep,
		WeightStep:        o.WeightStep,
		WeightCeiling:     o.WeightCeiling,
		GenerateMoreMin:   o.GenerateMoreMin,
		MinCoverageRatio:  o.MinCoverageRatio,
		DefaultCount:      o.DefaultCount,
		AdvisoryBlend:     o.AdvisoryBlend,
	}
}

// Orderer returns the sequencing tuning.
func (c *Config) Orderer() ordering.Config {
	return ordering.Config{BatchSize: c.Ordering.BatchSize, MaxConcurrency: c.Ordering.MaxConcurrency}
}
