// Package errs defines the pricing engine's error taxonomy.
//
// Errors are classified by Kind rather than by Go type so callers can branch
// on a small, stable set of categories (spec §7) without importing every
// package that can fail.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy categories from spec §7.
type Kind int

const (
	// InvalidSchema covers missing required fields, array-length mismatches,
	// and a correlation matrix that is non-PSD beyond tolerance even after
	// nearest-PSD projection.
	InvalidSchema Kind = iota
	// InvalidDate covers unparseable or out-of-order dates, and observation
	// dates preceding the valuation date.
	InvalidDate
	// NumericFailure covers non-finite PV, or a zero divisor in the
	// Brownian-bridge formula (σ²·dt == 0).
	NumericFailure
	// ResourceExceeded covers a block-size × assets × steps allocation that
	// exceeds a caller-supplied memory ceiling.
	ResourceExceeded
	// Cancelled covers a run stopped by the caller's cancel token between
	// blocks.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidSchema:
		return "InvalidSchema"
	case InvalidDate:
		return "InvalidDate"
	case NumericFailure:
		return "NumericFailure"
	case ResourceExceeded:
		return "ResourceExceeded"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy-tagged error. Op names the failing operation in the
// style of fmt.Errorf("Func: ...") used throughout the teacher codebase.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged Error. Use this instead of bare fmt.Errorf wherever
// the error crosses a package boundary that a caller may branch on.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err was classified with the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrCancelled is the sentinel wrapped by every Cancelled error, so callers
// can also match with errors.Is(err, errs.ErrCancelled).
var ErrCancelled = errors.New("pricing run cancelled")
