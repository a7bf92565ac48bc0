package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeConfiguration marks missing or invalid input, or an unreachable
	// write coordinator.
	CodeConfiguration = "E_CONFIGURATION"
	// CodeParse marks DDL or metadata text lacking an expected clause.
	CodeParse = "E_PARSE"
	// CodeConsistency marks a row-count mismatch detected before a swap.
	CodeConsistency = "E_CONSISTENCY"
	// CodeExecution marks a statement rejected by the database.
	CodeExecution = "E_EXECUTION"
	// CodeIngest marks a stream load that did not succeed.
	CodeIngest = "E_INGEST"
)

// Error wraps a failure with its code and a retryability hint.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an Error around err. A nil err yields a bare code.
func Wrap(code string, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}

// Configurationf returns a non-retryable configuration error.
func Configurationf(format string, args ...any) error {
	return Wrap(CodeConfiguration, false, fmt.Errorf(format, args...))
}

// Parsef returns a non-retryable parse error.
func Parsef(format string, args ...any) error {
	return Wrap(CodeParse, false, fmt.Errorf(format, args...))
}

// Consistencyf returns a non-retryable consistency error.
func Consistencyf(format string, args ...any) error {
	return Wrap(CodeConsistency, false, fmt.Errorf(format, args...))
}

// Execution wraps a database failure for the given statement.
func Execution(stmt string, err error) error {
	return Wrap(CodeExecution, false, fmt.Errorf("execute %q: %w", abbreviate(stmt), err))
}

// Ingestf returns a retryable ingest error.
func Ingestf(format string, args ...any) error {
	return Wrap(CodeIngest, true, fmt.Errorf(format, args...))
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether err may succeed on another attempt. Errors
// without a code are treated as transient.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return err != nil
}

func abbreviate(stmt string) string {
	const max = 160
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}
