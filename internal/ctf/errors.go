package ctf

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedPhase is returned when a tracker is driven through a phase it
	// does not handle.
	ErrUnexpectedPhase = errors.New("unexpected phase")
	// ErrMissingTeam is returned when an event lacks a required team payload.
	ErrMissingTeam = errors.New("missing team")
	// ErrMissingValue is returned when an event lacks a required value payload.
	ErrMissingValue = errors.New("missing value")
)

// ParsingErrorKind classifies a fatal round processing failure.
type ParsingErrorKind string

const (
	// LogicFailure means the dispatcher contract was violated.
	LogicFailure ParsingErrorKind = "LOGIC_FAILURE"
	// ParsingFailure means the event feed itself is malformed.
	ParsingFailure ParsingErrorKind = "PARSING_FAILURE"
)

// ParsingError aborts processing of a round.
type ParsingError struct {
	Kind       ParsingErrorKind
	LineNumber int
	Err        error
}

func (e *ParsingError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s at line %d: %v", e.Kind, e.LineNumber, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}

// NewLogicError wraps err as a logic failure.
func NewLogicError(err error) *ParsingError {
	return &ParsingError{Kind: LogicFailure, Err: err}
}

// NewParsingError wraps err as a parsing failure at a log line.
func NewParsingError(lineNumber int, err error) *ParsingError {
	return &ParsingError{Kind: ParsingFailure, LineNumber: lineNumber, Err: err}
}
