package mapfile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnidentifiedFormat means the listing matches none of the known dialects.
	ErrUnidentifiedFormat = errors.New("unidentified map file format")
	// ErrMalformedLine marks a data line that was skipped.
	ErrMalformedLine = errors.New("malformed line")
	// ErrMalformedHeader means a structural line broke the dialect's assumptions.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrAllocation means the record store reached its limit.
	ErrAllocation = errors.New("record store exhausted")
)

// LineError reports a parse problem at a listing line.
type LineError struct {
	Line int
	Err  error
	Msg  string
}

func (e *LineError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %v: %s", e.Line, e.Err, e.Msg)
}

func (e *LineError) Unwrap() error { return e.Err }
