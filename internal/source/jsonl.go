package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/23skdu/longbow-corpus/internal/dataset"
)

// loadJSONL reads one JSON object per line. Blank lines are skipped but still
// count toward the row index so errors point at the right line.
func loadJSONL(ctx context.Context, path, textField string) ([]dataset.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readJSONL(ctx, f, textField)
}

func readJSONL(ctx context.Context, r io.Reader, textField string) ([]dataset.Record, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	var out []dataset.Record
	for row := 0; ; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var fields map[string]any
			if uerr := json.Unmarshal(trimmed, &fields); uerr != nil {
				return nil, &dataset.MalformedRecordError{Index: row, Field: textField, Reason: fmt.Sprintf("row is not a JSON object: %v", uerr)}
			}
			rec, rerr := dataset.NewRecord(fields, textField)
			if rerr != nil {
				return nil, withRow(rerr, row)
			}
			out = append(out, rec)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
	}
}
