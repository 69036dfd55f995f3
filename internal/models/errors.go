package models

import "errors"

var (
	// ErrSelectionUnavailable covers both "no inventory" and "fetch failed".
	// Callers must not distinguish the two; both render the fallback or nothing.
	ErrSelectionUnavailable = errors.New("selection unavailable")
	// ErrMalformedDescriptor is returned when the delivery kind does not match the populated payload.
	ErrMalformedDescriptor = errors.New("malformed content descriptor")
	// ErrReportingFailure marks an engagement report that could not be delivered.
	ErrReportingFailure = errors.New("engagement reporting failed")
)
