package dataset

import (
	"golang.org/x/text/unicode/norm"
)

// DefaultTextField is the column holding raw text in source datasets.
const DefaultTextField = "text"

// DefaultOutputField is the column the trainer reads formatted text from.
const DefaultOutputField = "text_custom"

// Record is a validated source row. The zero value has no text and is
// rejected by Format.
type Record struct {
	text    string
	present bool
}

// NewTextRecord builds a record from a known text value.
func NewTextRecord(text string) Record {
	return Record{text: text, present: true}
}

// NewRecord validates a loosely-typed row. The text field must exist and hold
// a string; anything else is a malformed record.
func NewRecord(fields map[string]any, textField string) (Record, error) {
	v, ok := fields[textField]
	if !ok {
		return Record{}, &MalformedRecordError{Index: -1, Field: textField, Reason: "is missing"}
	}
	switch s := v.(type) {
	case string:
		return NewTextRecord(s), nil
	case nil:
		return Record{}, &MalformedRecordError{Index: -1, Field: textField, Reason: "is null"}
	default:
		return Record{}, &MalformedRecordError{Index: -1, Field: textField, Reason: "is not a string"}
	}
}

func (r Record) Text() string { return r.text }

// Normalize returns the record with its text in Unicode NFC form.
func (r Record) Normalize() Record {
	if !r.present {
		return r
	}
	return Record{text: norm.NFC.String(r.text), present: true}
}

// FormattedRecord is a record with the end-of-sequence marker appended.
type FormattedRecord struct {
	Text       string `json:"text"`
	TextCustom string `json:"text_custom"`
}

// RecordsFromTexts wraps plain strings as validated records.
func RecordsFromTexts(texts []string) []Record {
	out := make([]Record, len(texts))
	for i, t := range texts {
		out[i] = NewTextRecord(t)
	}
	return out
}
