package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ordering"
)

func TestCurator_Curate(t *testing.T) {
	gen := &stubGenerator{features: midFeatures(), size: 20}
	rec := &mockRecorder{}
	c := NewCurator(
		NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop()),
		ordering.NewOrderer(nil, ordering.Config{}, zerolog.Nop()),
		rec,
		zerolog.Nop(),
	)
	c.newID = func() string { return "run-1" }
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	pl, err := c.Curate(context.Background(), midMood(), GenerateOptions{Count: 20})
	require.NoError(t, err)
	assert.Equal(t, "run-1", pl.RunID)
	assert.Equal(t, "easy sunday afternoon", pl.Prompt)
	assert.Len(t, pl.Tracks, 20)
	assert.Equal(t, domain.StatusAccepted, pl.Status)
	assert.Equal(t, 1, pl.Iterations)
	assert.Equal(t, domain.StrategyClassicBuild, pl.Strategy)
	for _, tr := range pl.Tracks {
		assert.NotNil(t, tr.EnergyAnalysis)
	}

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].ID)
	assert.Equal(t, fixed, records[0].CreatedAt)
	assert.Equal(t, domain.TrackIDs(pl.Tracks), records[0].TrackIDs)
}

func TestCurator_Errors(t *testing.T) {
	c := NewCurator(
		NewOrchestrator(&stubGenerator{}, nil, OrchestratorConfig{}, zerolog.Nop()),
		ordering.NewOrderer(nil, ordering.Config{}, zerolog.Nop()),
		nil,
		zerolog.Nop(),
	)

	_, err := c.Curate(context.Background(), domain.MoodTarget{}, GenerateOptions{})
	assert.ErrorIs(t, err, ErrEmptyMood, "empty mood must be rejected")

	_, err = c.Curate(context.Background(), midMood(), GenerateOptions{Count: 10})
	assert.ErrorIs(t, err, domain.ErrNoRecommendations)
}

func TestCurator_ForcedStrategy(t *testing.T) {
	gen := &stubGenerator{features: midFeatures(), size: 10}
	c := NewCurator(
		NewOrchestrator(gen, nil, OrchestratorConfig{}, zerolog.Nop()),
		ordering.NewOrderer(nil, ordering.Config{}, zerolog.Nop()),
		nil,
		zerolog.Nop(),
	)
	pl, err := c.Curate(context.Background(), midMood(), GenerateOptions{Count: 10, Strategy: domain.StrategyChillJourney})
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyChillJourney, pl.Strategy)
}

// --- Mocks ---

type mockRecorder struct {
	mu   sync.Mutex
	recs []domain.RunRecord
}

func (m *mockRecorder) Submit(r domain.RunRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	return true
}

func (m *mockRecorder) all() []domain.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RunRecord(nil), m.recs...)
}
