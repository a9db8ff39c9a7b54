package ports

import (
	"context"
	"encoding/json"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// AdvisoryService returns a structured JSON judgment for a structured prompt.
// It is optional: a nil AdvisoryService means every caller uses its fallback.
type AdvisoryService interface {
	Ask(ctx context.Context, prompt domain.AdvisoryPrompt) (json.RawMessage, error)
}
