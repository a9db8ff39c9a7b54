package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/services"
)

const (
	errCodeNoRecommendations = "NO_RECOMMENDATIONS"
	errCodeInvalidRequest    = "INVALID_REQUEST"
	errCodeRateLimited       = "RATE_LIMITED"
	maxRequestBytes          = 1 << 20
)

// AnchorTrack is a track the user explicitly asked for.
type AnchorTrack struct {
	ID       string             `json:"id" validate:"required"`
	Name     string             `json:"name" validate:"required"`
	URI      string             `json:"uri,omitempty"`
	Artists  []string           `json:"artists"`
	Features map[string]float64 `json:"features,omitempty"`
}

// GenerateRequest is the body of POST /playlists/generate and the file format
// read by the generate command.
type GenerateRequest struct {
	Mood     domain.MoodTarget `json:"mood"`
	Seeds    []string          `json:"seeds,omitempty" validate:"max=5,dive,required"`
	Anchors  []AnchorTrack     `json:"anchors,omitempty" validate:"max=50,dive"`
	Count    int               `json:"count,omitempty" validate:"gte=0,lte=100"`
	Strategy string            `json:"strategy,omitempty"`
}

// Options converts the request into curator options.
func (req GenerateRequest) Options() services.GenerateOptions {
	anchors := make([]domain.Track, 0, len(req.Anchors))
	for _, a := range req.Anchors {
		anchors = append(anchors, domain.Track{
			ID:       a.ID,
			URI:      a.URI,
			Name:     a.Name,
			Artists:  append([]string(nil), a.Artists...),
			Features: domain.AudioFeatures(a.Features).Clone(),
		})
	}
	return services.GenerateOptions{
		Seeds:    req.Seeds,
		Anchors:  anchors,
		Count:    req.Count,
		Strategy: domain.OrderingStrategy(req.Strategy),
	}
}

// DecodeGenerateRequest reads and validates a generate request.
func DecodeGenerateRequest(r io.Reader, v *validator.Validate) (GenerateRequest, error) {
	var req GenerateRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return GenerateRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := v.Struct(req); err != nil {
		return GenerateRequest{}, fmt.Errorf("invalid request: %s", describeValidation(err))
	}
	if req.Strategy != "" {
		if _, err := domain.ParseOrderingStrategy(req.Strategy); err != nil {
			return GenerateRequest{}, fmt.Errorf("invalid request: %w", err)
		}
	}
	return req, nil
}

// GeneratePlaylist handles POST /playlists/generate
func (h *Handler) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	// 1. Decode and validate
	req, err := DecodeGenerateRequest(http.MaxBytesReader(w, r.Body, maxRequestBytes), h.validate)
	if err != nil {
		writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidRequest)
		return
	}

	// 2. Curate
	playlist, err := h.curator.Curate(r.Context(), req.Mood, req.Options())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMood):
			writeErrorWithCode(w, http.StatusBadRequest, err.Error(), errCodeInvalidRequest)
		case errors.Is(err, domain.ErrNoRecommendations):
			writeErrorWithCode(w, http.StatusUnprocessableEntity, err.Error(), errCodeNoRecommendations)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
		default:
			h.logger.Error().Err(err).Msg("generate playlist failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// 3. Respond
	w.Header().Set("Location", "/runs/"+playlist.RunID)
	writeJSON(w, http.StatusCreated, playlist)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
