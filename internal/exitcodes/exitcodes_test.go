package exitcodes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/johndauphine/table-transfer/internal/errs"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, Success},
		{"config kind", errs.New(errs.KindConfig, "validate", "", errors.New("batch_size must be positive")), ConfigError},
		{"connection kind", errs.New(errs.KindConnection, "open", "source", errors.New("boom")), ConnectionError},
		{"schema kind", fmt.Errorf("job x: %w", errs.New(errs.KindSchema, "introspect", "T", nil)), SchemaError},
		{"join key kind", errs.New(errs.KindJoinKey, "merge", "ID", nil), JoinKeyError},
		{"data format kind", errs.New(errs.KindDataFormat, "load", "ref.xlsx", nil), DataFormatError},
		{"write kind", errs.New(errs.KindWrite, "commit", "T", nil), WriteError},
		{"state kind", errs.New(errs.KindState, "open", "state.db", nil), StateError},
		{"context canceled", context.Canceled, Cancelled},
		{"wrapped canceled", fmt.Errorf("job orders: %w", context.Canceled), Cancelled},
		{"path error", &os.PathError{Op: "open", Path: "/foo", Err: errors.New("no such file")}, DataFormatError},
		{"yaml parse error", errors.New("yaml: unmarshal error"), ConfigError},
		{"connection refused", errors.New("dial tcp: connection refused"), ConnectionError},
		{"listener", errors.New("ORA-12541: TNS:no listener"), ConnectionError},
		{"missing table", errors.New("ORA-00942: table or view does not exist"), SchemaError},
		{"row count mismatch", errors.New("row count mismatch: expected 100, got 99"), ValidationError},
		{"canceled text", errors.New("context canceled"), Cancelled},
		{"config changed", errors.New("config changed since last run"), StateError},
		{"unknown error", errors.New("something unexpected happened"), WriteError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got != tt.expected {
				t.Errorf("FromError(%v) = %d (%s), want %d (%s)",
					tt.err, got, Description(got), tt.expected, Description(tt.expected))
			}
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("inner error")
	exitErr := NewExitError(inner, ConnectionError)

	if exitErr.Code != ConnectionError {
		t.Errorf("expected code %d, got %d", ConnectionError, exitErr.Code)
	}

	if exitErr.Error() != "inner error" {
		t.Errorf("expected error message 'inner error', got '%s'", exitErr.Error())
	}

	if errors.Unwrap(exitErr) != inner {
		t.Error("Unwrap should return inner error")
	}

	if FromError(exitErr) != ConnectionError {
		t.Errorf("FromError should extract code from ExitError")
	}
}

func TestIsRecoverable(t *testing.T) {
	recoverable := []int{ConnectionError, WriteError, Cancelled}
	nonRecoverable := []int{Success, ConfigError, SchemaError, JoinKeyError, DataFormatError, StateError, ValidationError}

	for _, code := range recoverable {
		if !IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be recoverable", code, Description(code))
		}
	}

	for _, code := range nonRecoverable {
		if IsRecoverable(code) {
			t.Errorf("expected code %d (%s) to be non-recoverable", code, Description(code))
		}
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "success"},
		{ConfigError, "configuration error"},
		{ConnectionError, "connection error (recoverable)"},
		{SchemaError, "schema error"},
		{JoinKeyError, "join key error"},
		{DataFormatError, "reference data format error"},
		{WriteError, "write error (recoverable)"},
		{Cancelled, "cancelled (recoverable)"},
		{StateError, "state error"},
		{ValidationError, "validation error"},
		{99, "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := Description(tt.code)
			if got != tt.expected {
				t.Errorf("Description(%d) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}
