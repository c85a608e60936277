package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the reconciliation engine.
var (
	// ErrBelowThreshold means a pass tried to record a pair scoring under its own threshold.
	ErrBelowThreshold = errors.New("match score below pass threshold")
	// ErrUpdateDeleteOverlap means a saved record landed in both the update and delete partitions.
	ErrUpdateDeleteOverlap = errors.New("saved record scheduled for both update and delete")
	// ErrSeedMismatch means a pre-seeded pair does not describe an exact hash match.
	ErrSeedMismatch = errors.New("seeded pair is not an exact hash match")
	// ErrPassOrder means a pass was run before the pass it depends on.
	ErrPassOrder = errors.New("pass run out of order")
	// ErrInvalidConfig means the scoring configuration failed validation.
	ErrInvalidConfig = errors.New("invalid scoring config")
)

// InvariantError reports a broken accumulator invariant. It always indicates a
// programming error: applying the affected change set could destroy user data.
type InvariantError struct {
	Pass   string
	Err    error
	Detail string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("reconcile invariant violated in %s pass: %v (%s)", e.Pass, e.Err, e.Detail)
}

// Unwrap returns the underlying sentinel.
func (e *InvariantError) Unwrap() error { return e.Err }

// IsInvariant reports whether err is, or wraps, an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
