// Package exitcodes defines standard exit codes for CLI operations.
// Codes are stable so that schedulers (cron, Airflow, Kubernetes jobs) can
// decide whether a failed transfer is worth retrying.
package exitcodes

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/johndauphine/table-transfer/internal/errs"
)

const (
	// Success - every job completed
	Success = 0

	// ConfigError - configuration/YAML parsing or job specification errors (don't retry)
	ConfigError = 1

	// ConnectionError - a database could not be reached or the session dropped (recoverable)
	ConnectionError = 2

	// SchemaError - source introspection or destination table creation failed
	SchemaError = 3

	// JoinKeyError - a join key is missing from the source or the reference dataset
	JoinKeyError = 4

	// DataFormatError - the reference dataset is unreadable or malformed
	DataFormatError = 5

	// WriteError - a chunk insert or commit failed (recoverable, committed chunks stay)
	WriteError = 6

	// Cancelled - user cancelled via SIGINT/SIGTERM (recoverable)
	Cancelled = 7

	// StateError - run history errors or config changed since last run
	StateError = 8

	// ValidationError - row counts differ between source and destination
	ValidationError = 9
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the appropriate exit code for an error.
// Classified errors map by kind; anything else is classified by message.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if errors.Is(err, context.Canceled) {
		return Cancelled
	}

	switch errs.KindOf(err) {
	case errs.KindConfig:
		return ConfigError
	case errs.KindConnection:
		return ConnectionError
	case errs.KindSchema:
		return SchemaError
	case errs.KindJoinKey:
		return JoinKeyError
	case errs.KindDataFormat:
		return DataFormatError
	case errs.KindWrite:
		return WriteError
	case errs.KindState:
		return StateError
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return DataFormatError
	}

	errStr := strings.ToLower(err.Error())

	// check before ConfigError so "row count validation failed" is not
	// caught by the "validation" keyword
	if containsAny(errStr, []string{
		"row count",
		"mismatch",
		"validation failed",
	}) {
		return ValidationError
	}

	if containsAny(errStr, []string{
		"yaml:",
		"unmarshal",
		"invalid configuration",
		"missing required",
		"invalid value",
		"parsing config",
	}) && !containsAny(errStr, []string{"connection", "connect", "dial"}) {
		return ConfigError
	}

	if containsAny(errStr, []string{
		"connection",
		"connect",
		"dial",
		"refused",
		"timeout",
		"unreachable",
		"no such host",
		"network",
		"ping",
		"login failed",
		"authentication",
		"ora-12541",
		"ora-12514",
		"ora-01017",
	}) {
		return ConnectionError
	}

	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
		"context deadline",
	}) {
		return Cancelled
	}

	if containsAny(errStr, []string{
		"no such table",
		"does not exist",
		"ora-00942",
		"create table",
		"column",
	}) {
		return SchemaError
	}

	if containsAny(errStr, []string{
		"state",
		"checkpoint",
		"resume",
		"run not found",
		"config changed",
	}) {
		return StateError
	}

	// unknown failures happened while moving rows
	return WriteError
}

// IsRecoverable returns true if the error is recoverable (safe to retry).
func IsRecoverable(code int) bool {
	switch code {
	case ConnectionError, WriteError, Cancelled:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case ConnectionError:
		return "connection error (recoverable)"
	case SchemaError:
		return "schema error"
	case JoinKeyError:
		return "join key error"
	case DataFormatError:
		return "reference data format error"
	case WriteError:
		return "write error (recoverable)"
	case Cancelled:
		return "cancelled (recoverable)"
	case StateError:
		return "state error"
	case ValidationError:
		return "validation error"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
