package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

func TestPool_SavesSubmittedRecords(t *testing.T) {
	journal := &mockJournal{}
	p := NewPool(journal, 10, zerolog.Nop())
	p.Start(2)

	for _, id := range []string{"r1", "r2", "r3"} {
		if !p.Submit(domain.RunRecord{ID: id}) {
			t.Fatalf("expected %s to be queued", id)
		}
	}
	p.Stop()

	if got := journal.count(); got != 3 {
		t.Fatalf("expected 3 saved records, got %d", got)
	}
}

func TestPool_DropsWhenFullOrStopped(t *testing.T) {
	journal := &mockJournal{}
	p := NewPool(journal, 1, zerolog.Nop())

	// No workers started: the first record fills the queue.
	if !p.Submit(domain.RunRecord{ID: "first"}) {
		t.Fatal("expected first record to be queued")
	}
	if p.Submit(domain.RunRecord{ID: "second"}) {
		t.Fatal("expected second record to be dropped")
	}

	p.Start(1)
	p.Stop()
	if p.Submit(domain.RunRecord{ID: "late"}) {
		t.Fatal("expected submit after stop to be dropped")
	}
	p.Stop() // idempotent

	if got := journal.count(); got != 1 {
		t.Fatalf("expected 1 saved record, got %d", got)
	}
}

func TestPool_SaveErrorDoesNotStopWorkers(t *testing.T) {
	journal := &mockJournal{failID: "bad"}
	p := NewPool(journal, 5, zerolog.Nop())
	p.Start(1)
	p.Submit(domain.RunRecord{ID: "bad"})
	p.Submit(domain.RunRecord{ID: "good"})
	p.Stop()

	if got := journal.count(); got != 1 {
		t.Fatalf("expected 1 saved record, got %d", got)
	}
}

// --- Mocks ---

type mockJournal struct {
	mu     sync.Mutex
	saved  []domain.RunRecord
	failID string
}

func (m *mockJournal) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockJournal) SaveRun(ctx context.Context, r domain.RunRecord) error {
	if r.ID == m.failID {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return nil
}

func (m *mockJournal) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	return domain.RunRecord{}, domain.ErrNotFound
}

func (m *mockJournal) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return nil, nil
}
