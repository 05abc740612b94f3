package processor

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
)

var (
	// ErrAlreadyInitialized is returned when a processor is initialized a
	// second time.
	ErrAlreadyInitialized = errors.New("processor already initialized")
	// ErrNotInitialized is returned when a round is processed before the
	// processor was initialized.
	ErrNotInitialized = errors.New("processor not initialized")
	// ErrFinalized is returned when a round is processed after the terminal
	// round.
	ErrFinalized = errors.New("processor already finished its terminal round")
)

// ErrorWithPosition is an error that has source position information associated
// with it. The position indicates the location in a source file where the error
// was encountered.
type ErrorWithPosition struct {
	err error
	pos token.Position
}

// Error implements the error interface. It includes position information in the
// returned message.
func (e *ErrorWithPosition) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.pos.Filename, e.pos.Line, e.pos.Column, e.err.Error())
}

// Underlying returns the underlying error.
func (e *ErrorWithPosition) Underlying() error {
	return e.err
}

// Unwrap returns the underlying error so that errors.Is and errors.As can see
// through the position information.
func (e *ErrorWithPosition) Unwrap() error {
	return e.err
}

// Pos returns the location in source where the underlying error was
// encountered.
func (e *ErrorWithPosition) Pos() token.Position {
	return e.pos
}

// NewErrorWithPosition returns the given error, but associates it with the
// given source code location.
func NewErrorWithPosition(pos token.Position, err error) *ErrorWithPosition {
	return &ErrorWithPosition{err: err, pos: pos}
}

// ConfigurationError indicates that a required option was not supplied by the
// host. It is fatal: processing cannot continue without the option.
type ConfigurationError struct {
	Key  string
	Hint string
}

func (e *ConfigurationError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("option %s cannot be empty", e.Key)
	}
	return fmt.Sprintf("option %s cannot be empty. %s", e.Key, e.Hint)
}

// GenerationContractError indicates that a generator did not honor its part of
// the contract, for example by not supplying fragments for a tag it asked for.
// It aborts the round.
type GenerationContractError struct {
	Kind   string
	Tag    string
	Reason string
}

func (e *GenerationContractError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("generator %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("generator %s: tag [%s]: %s", e.Kind, e.Tag, e.Reason)
}

// RoundFailure is returned by Config.Execute when one or more generators
// reported that a round failed. Unlike the other errors in this package, the
// rounds still ran to completion.
type RoundFailure struct {
	Failures []FailedRound
}

// FailedRound identifies a generator whose hook reported failure in a round.
type FailedRound struct {
	Kind  string
	Round int
}

func (e *RoundFailure) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s (round %d)", f.Kind, f.Round)
	}
	return fmt.Sprintf("processing failed: %s", strings.Join(parts, ", "))
}

func contractError(kind, tag, format string, args ...interface{}) *GenerationContractError {
	return &GenerationContractError{Kind: kind, Tag: tag, Reason: fmt.Sprintf(format, args...)}
}
