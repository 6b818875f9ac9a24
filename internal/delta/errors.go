package delta

import (
	"errors"
	"fmt"
)

// MalformedDeltaError reports an update query that cannot be decoded.
//
// Statement is the index of the first statement that failed at the
// minimum batch size, or -1 when the failure is structural (no DATA block,
// unbalanced braces, lexing error).
type MalformedDeltaError struct {
	Snapshot  string
	Statement int
	Reason    string
	Err       error
}

func (e *MalformedDeltaError) Error() string {
	msg := "malformed delta"
	if e.Snapshot != "" {
		msg += fmt.Sprintf(" in snapshot %s", e.Snapshot)
	}
	if e.Statement >= 0 {
		msg += fmt.Sprintf(" (statement %d)", e.Statement)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedDeltaError) Unwrap() error {
	return e.Err
}

// IsMalformedDelta returns true if the error is a MalformedDeltaError.
// Uses errors.As to handle wrapped errors.
func IsMalformedDelta(err error) bool {
	var me *MalformedDeltaError
	return errors.As(err, &me)
}

func structural(reason string, err error) *MalformedDeltaError {
	return &MalformedDeltaError{Statement: -1, Reason: reason, Err: err}
}
