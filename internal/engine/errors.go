package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/timeagnostic/internal/delta"
	"github.com/roach88/timeagnostic/internal/source"
)

// ErrorCode categorizes engine errors. The CLI reports it alongside the
// message.
type ErrorCode string

const (
	// ErrCodeUnsupportedQuery indicates a query that is not a SELECT or
	// uses constructs the query backend cannot evaluate.
	ErrCodeUnsupportedQuery ErrorCode = "UNSUPPORTED_QUERY"

	// ErrCodeNoAnchor indicates a query without any concrete IRI or literal
	// in subject or object position.
	ErrCodeNoAnchor ErrorCode = "NO_ANCHOR"

	// ErrCodeReconstruction indicates that an entity's history could not be
	// rebuilt.
	ErrCodeReconstruction ErrorCode = "RECONSTRUCTION_FAILED"

	// ErrCodeMalformedDelta indicates an update query that cannot be parsed.
	ErrCodeMalformedDelta ErrorCode = "MALFORMED_DELTA"

	// ErrCodeTransport indicates a failing dataset or provenance source.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeRoundsExceeded indicates that variable resolution hit its
	// round limit.
	ErrCodeRoundsExceeded ErrorCode = "ROUNDS_EXCEEDED"
)

// UnsupportedQueryError is returned before any source is touched when the
// query cannot be answered.
type UnsupportedQueryError struct {
	Reason string
	Err    error
}

func (e *UnsupportedQueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCodeUnsupportedQuery, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrCodeUnsupportedQuery, e.Reason)
}

func (e *UnsupportedQueryError) Unwrap() error { return e.Err }

// Code returns ErrCodeUnsupportedQuery.
func (e *UnsupportedQueryError) Code() ErrorCode { return ErrCodeUnsupportedQuery }

// NoAnchorError is returned when a query has no concrete term to start
// reconstruction from.
type NoAnchorError struct {
	Query string
}

func (e *NoAnchorError) Error() string {
	return fmt.Sprintf("%s: query has no IRI or literal in subject or object position", ErrCodeNoAnchor)
}

// Code returns ErrCodeNoAnchor.
func (e *NoAnchorError) Code() ErrorCode { return ErrCodeNoAnchor }

// ReconstructionError names the entity, and the snapshot when known, whose
// history could not be rebuilt.
type ReconstructionError struct {
	Entity   string
	Snapshot string
	Err      error
}

func (e *ReconstructionError) Error() string {
	if e.Snapshot != "" {
		return fmt.Sprintf("%s: entity %s (snapshot %s): %v", ErrCodeReconstruction, e.Entity, e.Snapshot, e.Err)
	}
	return fmt.Sprintf("%s: entity %s: %v", ErrCodeReconstruction, e.Entity, e.Err)
}

func (e *ReconstructionError) Unwrap() error { return e.Err }

// Code returns ErrCodeReconstruction.
func (e *ReconstructionError) Code() ErrorCode { return ErrCodeReconstruction }

// CodeOf returns the code of the outermost engine error in err's chain,
// falling back to the codes of wrapped delta and transport failures.
// Unknown errors report "".
func CodeOf(err error) ErrorCode {
	var coded interface{ Code() ErrorCode }
	switch {
	case errors.As(err, &coded):
		return coded.Code()
	case IsMalformedDelta(err):
		return ErrCodeMalformedDelta
	case IsTransportError(err):
		return ErrCodeTransport
	}
	return ""
}

// IsUnsupportedQuery returns true if the error is an UnsupportedQueryError.
func IsUnsupportedQuery(err error) bool {
	var ue *UnsupportedQueryError
	return errors.As(err, &ue)
}

// IsNoAnchor returns true if the error is a NoAnchorError.
func IsNoAnchor(err error) bool {
	var ne *NoAnchorError
	return errors.As(err, &ne)
}

// IsReconstructionError returns true if the error is a ReconstructionError.
func IsReconstructionError(err error) bool {
	var re *ReconstructionError
	return errors.As(err, &re)
}

// IsMalformedDelta returns true if the error wraps a delta.MalformedDeltaError.
func IsMalformedDelta(err error) bool {
	return delta.IsMalformedDelta(err)
}

// IsTransportError returns true if the error wraps a source.TransportError.
func IsTransportError(err error) bool {
	return source.IsTransportError(err)
}
