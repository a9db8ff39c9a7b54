package ports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ewilliams-labs/overture/curator/internal/core/domain"
)

type stubAdvisory struct {
	raw json.RawMessage
	err error
}

func (s stubAdvisory) Ask(ctx context.Context, p domain.AdvisoryPrompt) (json.RawMessage, error) {
	return s.raw, s.err
}

func TestConsult(t *testing.T) {
	type answer struct {
		Strategy string `json:"strategy"`
	}

	tests := []struct {
		name    string
		svc     AdvisoryService
		want    string
		wantErr error
	}{
		{name: "nil service", svc: nil, wantErr: domain.ErrAdvisoryDisabled},
		{name: "transport failure", svc: stubAdvisory{err: errors.New("dial tcp")}, wantErr: domain.ErrUpstreamUnavailable},
		{name: "empty answer", svc: stubAdvisory{}, wantErr: domain.ErrMalformedAdvisory},
		{name: "not json", svc: stubAdvisory{raw: json.RawMessage(`nope`)}, wantErr: domain.ErrMalformedAdvisory},
		{name: "ok", svc: stubAdvisory{raw: json.RawMessage(`{"strategy":"classic_build"}`)}, want: "classic_build"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var got answer
			err := Consult(context.Background(), tc.svc, domain.AdvisoryPrompt{Task: domain.TaskOrderingStrategy}, &got)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if !domain.IsRecoverable(err) {
					t.Fatalf("expected recoverable error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Strategy != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got.Strategy)
			}
		})
	}
}
