package domain

import "errors"

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("domain: not found")
	// ErrUpstreamUnavailable marks a failed catalog or advisory call. Always recoverable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedAdvisory marks an advisory answer that failed validation.
	ErrMalformedAdvisory = errors.New("malformed advisory response")
	// ErrAdvisoryDisabled is returned when no advisory capability is configured.
	ErrAdvisoryDisabled = errors.New("advisory service disabled")
	// ErrNoRecommendations is the only fatal outcome: nothing survived every strategy and retry.
	ErrNoRecommendations = errors.New("no recommendations after all strategies")
)

// IsRecoverable reports whether callers should degrade instead of failing.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrMalformedAdvisory) ||
		errors.Is(err, ErrAdvisoryDisabled)
}
