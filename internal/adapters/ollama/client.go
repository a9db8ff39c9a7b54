// Package ollama provides an adapter for the Ollama LLM service.
// It answers structured advisory prompts by sending them to a local Ollama
// instance in JSON mode and returning the raw JSON judgment.
package ollama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
)

const (
	defaultBaseURL          = "http://localhost:11434"
	defaultModel            = "deepseek-r1:8b"
	defaultTimeout          = 30 * time.Second
	defaultRateLimit        = 2.0
	defaultBurst            = 4
	defaultFailureThreshold = 3
	defaultOpenTimeout      = 30 * time.Second
)

// Config configures the advisory client. Zero values use defaults.
type Config struct {
	BaseURL          string
	Model            string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[json.RawMessage]
	logger     zerolog.Logger
}

// compile-time interface assertion
var _ ports.AdvisoryService = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RatePerSecond
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	log := logger.With().Str("component", "ollama").Logger()
	c := &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
		logger:  log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "ollama-advisory",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the model's health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("advisory circuit state changed")
		},
	})
	return c
}

// Ask sends a structured prompt and returns the model's JSON answer.
// The answer is checked to be JSON but not validated against the task.
func (c *Client) Ask(ctx context.Context, prompt domain.AdvisoryPrompt) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ollama: rate limiter: %w", err)
	}

	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.chat(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("ollama: %s: %w: %v", prompt.Task, domain.ErrUpstreamUnavailable, err)
	}
	return raw, err
}

func (c *Client) chat(ctx context.Context, prompt domain.AdvisoryPrompt) (json.RawMessage, error) {
	user, err := userMessage(prompt)
	if err != nil {
		return nil, err
	}
	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(prompt.Task)},
			{Role: "user", Content: user},
		},
		Options: &chatOptions{Temperature: 0.2},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: %s", parsed.Error)
	}

	content := stripFences(parsed.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("ollama: empty response")
	}
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("ollama: %s: answer is not json: %w", prompt.Task, domain.ErrMalformedAdvisory)
	}

	c.logger.Debug().Str("task", string(prompt.Task)).Dur("took", time.Since(start)).Msg("advisory answered")
	return json.RawMessage(content), nil
}

func userMessage(prompt domain.AdvisoryPrompt) (string, error) {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(prompt.Instructions))
	if prompt.Context != nil {
		ctxJSON, err := json.MarshalIndent(prompt.Context, "", "  ")
		if err != nil {
			return "", fmt.Errorf("ollama: marshal context: %w", err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Context:\n")
		b.Write(ctxJSON)
	}
	return b.String(), nil
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
