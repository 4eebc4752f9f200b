package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-corpus/internal/dataset"
)

var arrowFileMagic = []byte("ARROW1")

// loadArrow reads an Arrow IPC file or stream, chosen by the leading magic.
func loadArrow(ctx context.Context, path, textField string) ([]dataset.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, len(arrowFileMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read arrow header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	mem := memory.DefaultAllocator
	if n == len(arrowFileMagic) && bytes.Equal(head, arrowFileMagic) {
		return readArrowFile(ctx, f, mem, textField)
	}
	return readArrowStream(ctx, f, mem, textField)
}

func readArrowFile(ctx context.Context, f *os.File, mem memory.Allocator, textField string) ([]dataset.Record, error) {
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow file: %w", err)
	}
	defer r.Close()

	var out []dataset.Record
	for i := 0; i < r.NumRecords(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("read batch %d: %w", i, err)
		}
		if out, err = appendBatch(out, rec, textField); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readArrowStream(ctx context.Context, rd io.Reader, mem memory.Allocator, textField string) ([]dataset.Record, error) {
	r, err := ipc.NewReader(rd, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer r.Release()

	var out []dataset.Record
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out, err = appendBatch(out, r.Record(), textField); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}
	return out, nil
}

func appendBatch(out []dataset.Record, rec arrow.Record, textField string) ([]dataset.Record, error) {
	batch, err := dataset.RecordsFromArrow(rec, textField, len(out))
	if err != nil {
		return nil, err
	}
	return append(out, batch...), nil
}
