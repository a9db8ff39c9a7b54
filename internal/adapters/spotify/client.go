package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/ratelimit"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	defaultMarket   = "US"
	defaultTimeout  = 15 * time.Second
)

// Config configures a catalog client built by NewFromConfig.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Market       string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Client is an HTTP client for the Spotify Web API catalog endpoints.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	market      string
	maxRetries  int
	baseBackoff time.Duration
	gate        *ratelimit.Gate
	logger      zerolog.Logger
}

// compile-time interface assertion
var _ ports.TrackCatalogClient = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithGate routes artist top-track calls through a shared rate gate.
func WithGate(g *ratelimit.Gate) Option {
	return func(c *Client) { c.gate = g }
}

// WithRetry overrides the retry budget and base backoff.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = backoff
	}
}

// WithMarket sets the market used for top tracks and search.
func WithMarket(market string) Option {
	return func(c *Client) {
		if market != "" {
			c.market = market
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l.With().Str("component", "spotify").Logger() }
}

// NewClient constructs a new Spotify client.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxRetries, backoff := getRetryConfig()
	c := &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		market:      defaultMarket,
		maxRetries:  maxRetries,
		baseBackoff: backoff,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client authenticated with the client-credentials flow.
// Without credentials the client sends unauthenticated requests.
func NewFromConfig(cfg Config, gate *ratelimit.Gate, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := &http.Client{Timeout: timeout}

	httpClient := base
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	} else {
		logger.Warn().Msg("spotify credentials not configured, catalog requests are unauthenticated")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts := []Option{WithGate(gate), WithMarket(cfg.Market), WithLogger(logger)}
	if cfg.MaxRetries > 0 || cfg.RetryBackoff > 0 {
		maxRetries, backoff := getRetryConfig()
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		}
		if cfg.RetryBackoff > 0 {
			backoff = cfg.RetryBackoff
		}
		opts = append(opts, WithRetry(maxRetries, backoff))
	}
	return NewClient(httpClient, baseURL, opts...)
}
