package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxRounds bounds variable resolution. Resolution normally stops
// long before: every round must reconstruct an entity never seen before.
const DefaultMaxRounds = 64

// RoundQuota counts resolution rounds of one query against a limit.
//
// The visited set already guarantees termination on finite data; the quota
// bounds the work done on very large link chains.
type RoundQuota struct {
	max     int
	current int
}

// NewRoundQuota creates a quota allowing maxRounds rounds.
func NewRoundQuota(maxRounds int) *RoundQuota {
	return &RoundQuota{max: maxRounds}
}

// Check counts one more round and fails once the limit is passed.
func (q *RoundQuota) Check(runID string) error {
	q.current++
	if q.current > q.max {
		return &RoundsExceededError{RunID: runID, Rounds: q.current, Limit: q.max}
	}
	return nil
}

// Current returns the number of rounds counted so far.
func (q *RoundQuota) Current() int {
	return q.current
}

// RoundsExceededError is reported, as a warning, when resolution stops at
// the round limit. Results are still evaluated on the histories gathered.
type RoundsExceededError struct {
	RunID  string
	Rounds int
	Limit  int
}

func (e *RoundsExceededError) Error() string {
	return fmt.Sprintf("run %s stopped variable resolution after %d rounds (limit %d)",
		e.RunID, e.Rounds-1, e.Limit)
}

// Code returns ErrCodeRoundsExceeded.
func (e *RoundsExceededError) Code() ErrorCode { return ErrCodeRoundsExceeded }

// IsRoundsExceeded returns true if the error is a RoundsExceededError.
func IsRoundsExceeded(err error) bool {
	var re *RoundsExceededError
	return errors.As(err, &re)
}
