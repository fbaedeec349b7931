package nav

import "errors"

// Sentinel errors for the navigation core. Expected, routine conditions
// (limit, conflict, not-found) share the same mechanism as genuine failures
// so callers dispatch uniformly with errors.Is.
var (
	// ErrInvalidArgument marks malformed input: empty session ids,
	// non-positive user ids, nil required payloads.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSessionLimitExceeded marks admission-control rejection.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")

	// ErrSessionConflict marks a duplicate session id.
	ErrSessionConflict = errors.New("session id already registered")

	// ErrSessionNotFound marks a lookup of an unknown or expired session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrVideoProcessing marks a vision collaborator failure or an
	// invalid analysis result.
	ErrVideoProcessing = errors.New("video processing failed")

	// ErrARGeneration marks an AR guidance collaborator failure.
	ErrARGeneration = errors.New("ar guidance generation failed")

	// ErrPathAdjustment marks a failed real-time path adjustment.
	ErrPathAdjustment = errors.New("path adjustment failed")

	// ErrOptimization marks a failed device performance optimization.
	ErrOptimization = errors.New("device optimization failed")

	// ErrLatencyMonitoring marks a failed latency read.
	ErrLatencyMonitoring = errors.New("latency monitoring failed")
)

// IsRoutine reports whether the error is an expected operational condition
// (admission, conflict, not-found, bad input) rather than an internal
// failure. API layers use this to pick 4xx statuses over 5xx.
func IsRoutine(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrSessionLimitExceeded) ||
		errors.Is(err, ErrSessionConflict) ||
		errors.Is(err, ErrSessionNotFound)
}
