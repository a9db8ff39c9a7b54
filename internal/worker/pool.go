// Package worker writes completed run records to the journal in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
	"github.com/ewilliams-labs/overture/curator/internal/metrics"
)

const saveTimeout = 10 * time.Second

// Pool manages background journal writers.
type Pool struct {
	journal ports.RunJournal
	jobs    chan domain.RunRecord
	wg      sync.WaitGroup
	logger  zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a pool with the given queue size. Call Start to run workers.
func NewPool(journal ports.RunJournal, queueSize int, logger zerolog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		journal: journal,
		jobs:    make(chan domain.RunRecord, queueSize),
		logger:  logger.With().Str("component", "journal-worker").Logger(),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for rec := range p.jobs {
				p.save(rec)
			}
		}()
	}
}

// Stop closes the queue and waits for queued records to be written.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a record without blocking. It reports false when the record
// was dropped because the queue is full or the pool is stopped.
func (p *Pool) Submit(rec domain.RunRecord) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.logger.Warn().Str("run_id", rec.ID).Msg("pool stopped, dropping run record")
		metrics.JournalDropped.Inc()
		return false
	}
	select {
	case p.jobs <- rec:
		return true
	default:
		p.logger.Warn().Str("run_id", rec.ID).Msg("journal queue full, dropping run record")
		metrics.JournalDropped.Inc()
		return false
	}
}

func (p *Pool) save(rec domain.RunRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := p.journal.SaveRun(ctx, rec); err != nil {
		p.logger.Warn().Err(err).Str("run_id", rec.ID).Msg("failed to save run record")
		return
	}
	p.logger.Debug().Str("run_id", rec.ID).Int("tracks", len(rec.TrackIDs)).Msg("run record saved")
}
