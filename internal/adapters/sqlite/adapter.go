// Package sqlite provides a SQLite-backed implementation of the run journal port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
	"github.com/ewilliams-labs/overture/curator/internal/core/ports"
)

const defaultListLimit = 20

// Adapter implements the run journal port for SQLite
type Adapter struct {
	db *sql.DB
}

// compile-time interface assertion
var _ ports.RunJournal = (*Adapter)(nil)

// evaluationDetail holds the list-valued parts of an evaluation.
type evaluationDetail struct {
	AdvisoryScore   *float64 `json:"advisory_score,omitempty"`
	OutlierTrackIDs []string `json:"outlier_track_ids"`
	Issues          []string `json:"issues"`
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if storagePath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	// Auto-migrate on startup for local dev
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// SaveRun writes a run and replaces its tracks and evaluation history.
func (a *Adapter) SaveRun(ctx context.Context, r domain.RunRecord) error {
	if r.ID == "" {
		return errors.New("sqlite: run id is required")
	}
	final, err := json.Marshal(r.Final)
	if err != nil {
		return fmt.Errorf("failed to encode final evaluation: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	queryRun := `
		INSERT INTO runs (id, prompt, status, strategy, iterations, final_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			prompt=excluded.prompt,
			status=excluded.status,
			strategy=excluded.strategy,
			iterations=excluded.iterations,
			final_json=excluded.final_json,
			created_at=excluded.created_at;
	`
	if _, err := tx.ExecContext(ctx, queryRun,
		r.ID, r.Prompt, string(r.Status), string(r.Strategy), r.Iterations, string(final),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to save run metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_tracks WHERE run_id = ?", r.ID); err != nil {
		return fmt.Errorf("failed to clear old tracks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_evaluations WHERE run_id = ?", r.ID); err != nil {
		return fmt.Errorf("failed to clear old evaluations: %w", err)
	}

	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO run_tracks (run_id, position, track_id) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtTrack.Close()

	for i, id := range r.TrackIDs {
		if _, err := stmtTrack.ExecContext(ctx, r.ID, i, id); err != nil {
			return fmt.Errorf("failed to save track %s: %w", id, err)
		}
	}

	stmtEval, err := tx.PrepareContext(ctx, `
		INSERT INTO run_evaluations (
			run_id, seq, iteration, overall_score, cohesion_score, coverage_score,
			confidence_score, diversity_score, track_count, meets_threshold, detail_json
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtEval.Close()

	for i, ev := range r.History {
		detail, err := json.Marshal(evaluationDetail{
			AdvisoryScore:   ev.AdvisoryScore,
			OutlierTrackIDs: ev.OutlierTrackIDs,
			Issues:          ev.Issues,
		})
		if err != nil {
			return fmt.Errorf("failed to encode evaluation %d: %w", i, err)
		}
		if _, err := stmtEval.ExecContext(ctx,
			r.ID, i, ev.Iteration, ev.OverallScore, ev.CohesionScore, ev.CoverageScore,
			ev.ConfidenceScore, ev.DiversityScore, ev.TrackCount, ev.MeetsThreshold, string(detail),
		); err != nil {
			return fmt.Errorf("failed to save evaluation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}

	return nil
}

// GetRun loads a run with its tracks and history.
func (a *Adapter) GetRun(ctx context.Context, id string) (domain.RunRecord, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, prompt, status, IFNULL(strategy, ''), IFNULL(iterations, 0), final_json, created_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RunRecord{}, domain.ErrNotFound
		}
		return domain.RunRecord{}, fmt.Errorf("failed to load run: %w", err)
	}
	if err := a.loadChildren(ctx, &r); err != nil {
		return domain.RunRecord{}, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 uses the default.
func (a *Adapter) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, prompt, status, IFNULL(strategy, ''), IFNULL(iterations, 0), final_json, created_at
		FROM runs
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	// children are loaded after the cursor closes; :memory: uses a single connection
	rows.Close()

	for i := range runs {
		if err := a.loadChildren(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.RunRecord, error) {
	var (
		r                  domain.RunRecord
		status, strategy   string
		finalJSON, created string
	)
	if err := s.Scan(&r.ID, &r.Prompt, &status, &strategy, &r.Iterations, &finalJSON, &created); err != nil {
		return domain.RunRecord{}, err
	}
	r.Status = domain.Status(status)
	r.Strategy = domain.OrderingStrategy(strategy)
	if finalJSON != "" {
		if err := json.Unmarshal([]byte(finalJSON), &r.Final); err != nil {
			return domain.RunRecord{}, fmt.Errorf("decode final evaluation: %w", err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}

func (a *Adapter) loadChildren(ctx context.Context, r *domain.RunRecord) error {
	trackRows, err := a.db.QueryContext(ctx, `
		SELECT track_id FROM run_tracks WHERE run_id = ? ORDER BY position ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to load run tracks: %w", err)
	}
	r.TrackIDs = []string{}
	for trackRows.Next() {
		var id string
		if err := trackRows.Scan(&id); err != nil {
			trackRows.Close()
			return fmt.Errorf("failed to scan run track: %w", err)
		}
		r.TrackIDs = append(r.TrackIDs, id)
	}
	if err := trackRows.Err(); err != nil {
		trackRows.Close()
		return fmt.Errorf("failed to iterate run tracks: %w", err)
	}
	trackRows.Close()

	evalRows, err := a.db.QueryContext(ctx, `
		SELECT iteration, overall_score, cohesion_score, coverage_score, confidence_score,
			diversity_score, track_count, meets_threshold, IFNULL(detail_json, '')
		FROM run_evaluations WHERE run_id = ? ORDER BY seq ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to load run evaluations: %w", err)
	}
	defer evalRows.Close()

	r.History = []domain.QualityEvaluation{}
	for evalRows.Next() {
		var (
			ev     domain.QualityEvaluation
			detail string
		)
		if err := evalRows.Scan(
			&ev.Iteration,
			&ev.OverallScore,
			&ev.CohesionScore,
			&ev.CoverageScore,
			&ev.ConfidenceScore,
			&ev.DiversityScore,
			&ev.TrackCount,
			&ev.MeetsThreshold,
			&detail,
		); err != nil {
			return fmt.Errorf("failed to scan run evaluation: %w", err)
		}
		if detail != "" {
			var d evaluationDetail
			if err := json.Unmarshal([]byte(detail), &d); err != nil {
				return fmt.Errorf("failed to decode evaluation detail: %w", err)
			}
			ev.AdvisoryScore = d.AdvisoryScore
			ev.OutlierTrackIDs = d.OutlierTrackIDs
			ev.Issues = d.Issues
		}
		r.History = append(r.History, ev)
	}
	if err := evalRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate run evaluations: %w", err)
	}
	return nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL,
		final_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS run_tracks (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_evaluations (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		overall_score REAL NOT NULL,
		cohesion_score REAL NOT NULL,
		coverage_score REAL NOT NULL,
		confidence_score REAL NOT NULL,
		diversity_score REAL NOT NULL,
		track_count INTEGER NOT NULL,
		meets_threshold BOOLEAN NOT NULL,
		detail_json TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// columns added after the first journal schema shipped
	for _, stmt := range []string{
		"ALTER TABLE runs ADD COLUMN strategy TEXT",
		"ALTER TABLE runs ADD COLUMN iterations INTEGER",
	} {
		if _, err := a.db.Exec(stmt); err != nil {
			if !isDuplicateColumnError(err) {
				return err
			}
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
