package catalog

import "errors"

// Sentinel errors shared across the pipeline.
var (
	// ErrPageUnavailable marks a page that could not be fetched after the
	// full retry budget. Callers skip the item and continue.
	ErrPageUnavailable = errors.New("page unavailable")

	// ErrMissingRequired marks an extracted record rejected for lacking a
	// title or a resolvable id.
	ErrMissingRequired = errors.New("missing required field")

	// ErrDimensionMismatch marks an embedding whose length does not match
	// the provider's declared dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
