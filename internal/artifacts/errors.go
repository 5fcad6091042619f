package artifacts

import "errors"

// Error taxonomy for artifact resolution. Callers branch with errors.Is;
// neither condition is retried inside the cache.
var (
	// ErrNotFound means the store answered but has no such object.
	ErrNotFound = errors.New("artifact not found in store")

	// ErrUnavailable means the store could not be reached. Transient.
	ErrUnavailable = errors.New("object store unavailable")

	// ErrCorrupt means the bytes were fetched but could not be decoded.
	// Treated as a deployment defect, never retried.
	ErrCorrupt = errors.New("artifact corrupt")
)
