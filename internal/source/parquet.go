package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/23skdu/longbow-corpus/internal/dataset"
)

// loadParquet reads only the text column of a parquet file.
func loadParquet(ctx context.Context, path, textField string) ([]dataset.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	bf := buffer.NewBufferFileFromBytesNoAlloc(data)
	pr, err := reader.NewParquetColumnReader(bf, 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pr.ReadStop()

	idx := -1
	for i, p := range pr.SchemaHandler.ValueColumns {
		parts := strings.Split(p, common.PAR_GO_PATH_DELIMITER)
		// Top-level columns only: root plus the field name.
		if len(parts) == 2 && strings.EqualFold(parts[1], textField) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &dataset.MalformedRecordError{Index: -1, Field: textField, Reason: "is missing from schema"}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := pr.GetNumRows()
	values, _, _, err := pr.ReadColumnByIndex(int64(idx), n)
	if err != nil {
		return nil, fmt.Errorf("read column %q: %w", textField, err)
	}

	out := make([]dataset.Record, len(values))
	for row, v := range values {
		switch s := v.(type) {
		case string:
			out[row] = dataset.NewTextRecord(s)
		case nil:
			return nil, &dataset.MalformedRecordError{Index: row, Field: textField, Reason: "is null"}
		default:
			return nil, &dataset.MalformedRecordError{Index: row, Field: textField, Reason: fmt.Sprintf("is not a string (%T)", v)}
		}
	}
	return out, nil
}
