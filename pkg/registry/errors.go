package registry

import "errors"

// Sentinel errors classifying registry failures for the HTTP layer and CLI.
// Wrapped with %w throughout so errors.Is works across layers.
var (
	// ErrInvalidInput marks payload problems detected before any write
	// (malformed GeoJSON, no usable features). Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict marks a lost race opening a new version. The whole
	// ingestion rolled back and can be retried as-is.
	ErrConflict = errors.New("version conflict")

	// ErrNotFound marks a network that does not exist for the tenant.
	// Distinct from an empty query result, which is a valid answer.
	ErrNotFound = errors.New("network not found")
)
