package eq500x

import (
	"errors"
	"fmt"
)

var (
	// ErrConvergence is reported when the centering procedure runs out of
	// iterations before both axis deltas fall under the wire-format
	// granularity. It is a pointing failure, not a connectivity one.
	ErrConvergence = errors.New("eq500x: failed to converge on target")

	// ErrRejected is reported when the mount answers a set-target or sync
	// command with an error code.
	ErrRejected = errors.New("eq500x: command rejected by mount")
)

// ParseError reports a wire reply that does not match its expected layout.
// Callers treat it like an I/O failure: the reply is unusable and the
// operation that needed it is aborted.
type ParseError struct {
	Want string // expected layout, e.g. "HH:MM:SS"
	Got  string // offending reply
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("eq500x: cannot parse %q as %s", e.Got, e.Want)
}
