package ports

import (
	"context"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// RunJournal stores completed curation runs for later inspection.
type RunJournal interface {
	SaveRun(ctx context.Context, r domain.RunRecord) error
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
