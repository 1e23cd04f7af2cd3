// Package parse turns the raw text of /proc, /sys and nvidia-smi into typed
// records. Every function here is pure: no I/O, no shared state, and the same
// input always yields the same output.
//
// Structural problems (a mandatory field is missing) are returned as *Error.
// Row-level problems are skipped and reported as RowError values alongside
// the rows that did parse.
package parse

import (
	"fmt"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// Error is a structural parse failure. It wraps types.ErrMalformed.
type Error struct {
	What   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.What, e.Reason)
}

func (e *Error) Unwrap() error { return types.ErrMalformed }

// RowError records one skipped row. Row is 1-based over the input lines.
type RowError struct {
	Row  int
	Line string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

func structural(what, format string, args ...any) error {
	return &Error{What: what, Reason: fmt.Sprintf(format, args...)}
}

func malformedField(field, value string) error {
	return fmt.Errorf("%w: field %s has value %q", types.ErrMalformed, field, value)
}
