package curation

import "fmt"

// InvariantError signals a programmer error, not a data error: the driver
// violated an invariant the engine depends on (most commonly, handing
// Insert records out of sorted order). It is always raised by panicking —
// cmd/curate recovers it at the top level and reports it as an internal
// error, per the error-handling design's split between data errors (plain
// returned errors) and invariant violations (panics).
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("curation: invariant violated: %s", e.Reason)
}

func panicInvariant(reason string) {
	panic(&InvariantError{Reason: reason})
}
