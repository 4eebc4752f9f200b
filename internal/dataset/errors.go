package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrNilBatch        = errors.New("record batch is nil")
	ErrMalformedRecord = errors.New("malformed record")
	ErrEmptyCollection = errors.New("collection is empty")
	ErrInvalidFraction = errors.New("held-out fraction must be in (0,1)")
	ErrFieldCollision  = errors.New("output field collides with the raw text column")
)

// CheckOutputField rejects output column names that would shadow the raw
// text column written next to them.
func CheckOutputField(outField string) error {
	if outField == DefaultTextField {
		return fmt.Errorf("%w: %q", ErrFieldCollision, outField)
	}
	return nil
}

// MalformedRecordError reports a record that lacks a usable text field.
// Index is -1 when the problem is in the schema rather than one row. Field
// is empty when the source column is no longer known.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed record %d: %s", e.Index, e.Reason)
	}
	if e.Index < 0 {
		return fmt.Sprintf("malformed records: field %q %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record %d: field %q %s", e.Index, e.Field, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}
