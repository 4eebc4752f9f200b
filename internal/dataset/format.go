package dataset

// Format appends marker to the text of every record. The output has the same
// length and order as records. The first record without text aborts the
// whole batch.
//
// Format only accepts raw records, so it cannot be applied twice to its own
// output. Source text that already ends with marker is not special-cased and
// receives a second copy.
func Format(records []Record, marker string) ([]FormattedRecord, error) {
	if records == nil {
		return nil, ErrNilBatch
	}

	out := make([]FormattedRecord, len(records))
	for i, r := range records {
		if !r.present {
			return nil, &MalformedRecordError{Index: i, Reason: "has no text"}
		}
		out[i] = FormattedRecord{
			Text:       r.text,
			TextCustom: r.text + marker,
		}
	}
	return out, nil
}
