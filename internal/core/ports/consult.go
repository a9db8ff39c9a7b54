package ports

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

// Consult asks svc and decodes the answer into out. The returned error is
// always one of the recoverable domain sentinels so call sites can fall back
// uniformly. Callers still validate the decoded value.
func Consult(ctx context.Context, svc AdvisoryService, prompt domain.AdvisoryPrompt, out any) error {
	if svc == nil {
		return domain.ErrAdvisoryDisabled
	}
	raw, err := svc.Ask(ctx, prompt)
	if err != nil {
		return fmt.Errorf("advisory %s: %w: %v", prompt.Task, domain.ErrUpstreamUnavailable, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("advisory %s: empty answer: %w", prompt.Task, domain.ErrMalformedAdvisory)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("advisory %s: %w: %v", prompt.Task, domain.ErrMalformedAdvisory, err)
	}
	return nil
}
