// Package errs defines the error taxonomy of the transfer engine.
// Every fatal condition is wrapped in an *Error carrying a Kind so that
// callers can decide how a failure is reported without parsing messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a transfer failure.
type Kind int

const (
	// KindUnknown is used for errors that were never classified.
	KindUnknown Kind = iota
	// KindConfig is an invalid configuration or job specification.
	KindConfig
	// KindConnection means a database connection could not be opened or was lost.
	KindConnection
	// KindSchema means a source could not be introspected or a destination
	// table could not be verified or created.
	KindSchema
	// KindJoinKey means a configured join key is missing from the chunk or
	// the reference dataset.
	KindJoinKey
	// KindDataFormat means the reference dataset is unreadable or malformed.
	KindDataFormat
	// KindWrite means a chunk insert or its commit failed.
	KindWrite
	// KindState means the run history store failed.
	KindState
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindConnection:
		return "ConnectionError"
	case KindSchema:
		return "SchemaError"
	case KindJoinKey:
		return "JoinKeyError"
	case KindDataFormat:
		return "DataFormatError"
	case KindWrite:
		return "WriteError"
	case KindState:
		return "StateError"
	default:
		return "Error"
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "introspect"
	Subject string // table, query label, file or connection role
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, errs.Schema) against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Subject == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	Config     = &Error{Kind: KindConfig}
	Connection = &Error{Kind: KindConnection}
	Schema     = &Error{Kind: KindSchema}
	JoinKey    = &Error{Kind: KindJoinKey}
	DataFormat = &Error{Kind: KindDataFormat}
	Write      = &Error{Kind: KindWrite}
	State      = &Error{Kind: KindState}
)

// New creates a classified error wrapping err.
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Newf creates a classified error with a formatted cause.
func Newf(kind Kind, op, subject, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindUnknown if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Ensure wraps err with kind unless it already carries a classification.
func Ensure(kind Kind, op, subject string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return New(kind, op, subject, err)
}
