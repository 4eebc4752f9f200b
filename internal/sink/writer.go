package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/dataset"
)

// Subset names used for file names and manifest keys.
const (
	SubsetTrain   = "train"
	SubsetHeldOut = "held_out"
)

// arrowBatchRows bounds the size of each record batch in Arrow output.
const arrowBatchRows = 64 * 1024

var ErrUnknownFormat = errors.New("unknown output format")

// FileName is the file a subset is written to, e.g. train.parquet.
func FileName(subset, format string) string {
	return subset + "." + format
}

// WriteRecords writes formatted records to path in the given format. The
// output has two string columns: dataset.DefaultTextField and outField.
func WriteRecords(path, format, outField string, records []dataset.FormattedRecord) error {
	if err := dataset.CheckOutputField(outField); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var err error
	switch format {
	case config.FormatJSONL:
		err = writeJSONL(path, outField, records)
	case config.FormatArrow:
		err = writeArrow(path, outField, records)
	case config.FormatParquet:
		err = writeParquet(path, outField, records)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeJSONL(path, outField string, records []dataset.FormattedRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(bw)
	// Markers such as </s> must reach the trainer unescaped.
	enc.SetEscapeHTML(false)
	row := make(map[string]string, 2)
	for _, r := range records {
		row[dataset.DefaultTextField] = r.Text
		row[outField] = r.TextCustom
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeArrow(path, outField string, records []dataset.FormattedRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	mem := memory.DefaultAllocator
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(dataset.FormattedSchema(outField)), ipc.WithAllocator(mem))
	if err != nil {
		return err
	}
	for start := 0; start < len(records); start += arrowBatchRows {
		end := min(start+arrowBatchRows, len(records))
		rec := dataset.ToArrow(mem, records[start:end], outField)
		err := w.Write(rec)
		rec.Release()
		if err != nil {
			return err
		}
	}
	return w.Close()
}

type parquetField struct {
	Tag string
}

type parquetSchema struct {
	Tag    string
	Fields []parquetField
}

func parquetSchemaJSON(outField string) (string, error) {
	col := func(name string) parquetField {
		return parquetField{Tag: fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=REQUIRED", name)}
	}
	b, err := json.Marshal(parquetSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: []parquetField{col(dataset.DefaultTextField), col(outField)},
	})
	return string(b), err
}

func writeParquet(path, outField string, records []dataset.FormattedRecord) error {
	schema, err := parquetSchemaJSON(outField)
	if err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}

	pw, err := writer.NewJSONWriter(schema, fw, 4)
	if err != nil {
		fw.Close()
		return err
	}
	row := make(map[string]string, 2)
	for _, r := range records {
		row[dataset.DefaultTextField] = r.Text
		row[outField] = r.TextCustom
		b, err := json.Marshal(row)
		if err != nil {
			fw.Close()
			return err
		}
		if err := pw.Write(string(b)); err != nil {
			fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}
