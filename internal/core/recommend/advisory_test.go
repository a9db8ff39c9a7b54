package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

func TestFilterArtists(t *testing.T) {
	artists := []domain.Artist{{ID: "1", Name: "One"}, {ID: "2", Name: "Two"}, {ID: "3", Name: "Three"}}

	tests := []struct {
		name    string
		answer  string
		err     error
		wantIDs []string
	}{
		{name: "keeps named artists", answer: `{"keep":["two","Three"]}`, wantIDs: []string{"2", "3"}},
		{name: "unknown names only keeps all", answer: `{"keep":["Nobody"]}`, wantIDs: []string{"1", "2", "3"}},
		{name: "malformed keeps all", answer: `{"keep":`, wantIDs: []string{"1", "2", "3"}},
		{name: "service error keeps all", err: errors.New("timeout"), wantIDs: []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &stubAdvisory{raw: json.RawMessage(tt.answer), err: tt.err}
			e := NewEngine(&mockCatalog{}, adv, Config{}, zerolog.Nop())

			got := e.filterArtists(context.Background(), Request{Prompt: "late night drive"}, artists)

			ids := make([]string, len(got))
			for i, a := range got {
				ids[i] = a.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, domain.TaskArtistFilter, adv.lastTask)
		})
	}
}

// --- Mocks ---

type stubAdvisory struct {
	raw      json.RawMessage
	err      error
	lastTask domain.AdvisoryTask
}

func (s *stubAdvisory) Ask(ctx context.Context, p domain.AdvisoryPrompt) (json.RawMessage, error) {
	s.lastTask = p.Task
	return s.raw, s.err
}
