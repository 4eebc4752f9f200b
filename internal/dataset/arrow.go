package dataset

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

type stringColumn interface {
	arrow.Array
	Value(i int) string
}

func textColumn(rec arrow.Record, field string) (stringColumn, error) {
	idx := rec.Schema().FieldIndices(field)
	if len(idx) == 0 {
		return nil, &MalformedRecordError{Index: -1, Field: field, Reason: "is missing from schema"}
	}
	switch col := rec.Column(idx[0]).(type) {
	case *array.String:
		return col, nil
	case *array.LargeString:
		return col, nil
	default:
		return nil, &MalformedRecordError{Index: -1, Field: field, Reason: "is not a string column (" + col.DataType().String() + ")"}
	}
}

// RecordsFromArrow validates the text column of rec and converts it to
// records. Row indices in errors are offset by base.
func RecordsFromArrow(rec arrow.Record, textField string, base int) ([]Record, error) {
	col, err := textColumn(rec, textField)
	if err != nil {
		return nil, err
	}
	out := make([]Record, col.Len())
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			return nil, &MalformedRecordError{Index: base + i, Field: textField, Reason: "is null"}
		}
		// Value aliases the batch buffer; copy so records outlive the batch.
		out[i] = NewTextRecord(strings.Clone(col.Value(i)))
	}
	return out, nil
}

// FormattedSchema is the schema written for formatted records. outField must
// pass CheckOutputField.
func FormattedSchema(outField string) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: DefaultTextField, Type: arrow.BinaryTypes.String},
		{Name: outField, Type: arrow.BinaryTypes.String},
	}, nil)
}

// ToArrow builds a record batch from formatted records. The caller owns the
// returned record.
func ToArrow(mem memory.Allocator, records []FormattedRecord, outField string) arrow.Record {
	bld := array.NewRecordBuilder(mem, FormattedSchema(outField))
	defer bld.Release()

	text := bld.Field(0).(*array.StringBuilder)
	custom := bld.Field(1).(*array.StringBuilder)
	text.Reserve(len(records))
	custom.Reserve(len(records))
	for _, r := range records {
		text.Append(r.Text)
		custom.Append(r.TextCustom)
	}
	return bld.NewRecord()
}
