package datum

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDatum means the output carries no datum at all
	ErrNoDatum = errors.New("output has no datum")
	// ErrSchema is wrapped by every DecodeError
	ErrSchema = errors.New("datum does not match escrow schema")
)

// DecodeError reports which field of the escrow datum failed to decode
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("escrow datum field %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrSchema
}

func fieldErr(field, format string, args ...any) error {
	return &DecodeError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
