package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/core/services"
)

// PlaylistCurator turns a mood into an ordered playlist.
type PlaylistCurator interface {
	Curate(ctx context.Context, mood domain.MoodTarget, opts services.GenerateOptions) (*domain.CuratedPlaylist, error)
}

var _ PlaylistCurator = (*services.Curator)(nil)

// Handler manages the HTTP interface for our application.
type Handler struct {
	curator  PlaylistCurator
	journal  ports.RunJournal // optional; run lookups answer 501 without it
	validate *validator.Validate
	logger   zerolog.Logger
	router   chi.Router

	corsOrigins   []string
	generateLimit int
	limitWindow   time.Duration
}

// Option customizes a Handler.
type Option func(*Handler)

// WithCORS allows browser clients from the given origins.
func WithCORS(origins ...string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// WithGenerateLimit caps generate requests per client IP; n <= 0 disables it.
func WithGenerateLimit(n int, window time.Duration) Option {
	return func(h *Handler) {
		h.generateLimit = n
		h.limitWindow = window
	}
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(curator PlaylistCurator, journal ports.RunJournal, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		curator:  curator,
		journal:  journal,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "rest").Logger(),
		router:   chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(h)
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.Use(middleware.RequestID)
	h.router.Use(middleware.RealIP)
	h.router.Use(h.requestLogger)
	h.router.Use(middleware.Recoverer)
	if len(h.corsOrigins) > 0 {
		h.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Location", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	h.router.Get("/health", h.HealthCheck)
	h.router.Handle("/metrics", promhttp.Handler())

	h.router.Group(func(r chi.Router) {
		if h.generateLimit > 0 {
			r.Use(httprate.Limit(h.generateLimit, h.limitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeErrorWithCode(w, http.StatusTooManyRequests, "too many generate requests", errCodeRateLimited)
				}),
			))
		}
		r.Post("/playlists/generate", h.GeneratePlaylist)
	})

	h.router.Get("/runs", h.ListRuns)
	h.router.Get("/runs/{id}", h.GetRun)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Overture curator is live 🎶"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
