package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/iter"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/dataset"
	"github.com/23skdu/longbow-corpus/internal/logger"
	"github.com/23skdu/longbow-corpus/internal/metrics"
)

var (
	ErrNoInputs      = errors.New("no input files matched")
	ErrUnknownFormat = errors.New("unknown input format")
)

// Options controls how shards are read.
type Options struct {
	TextField string
	// Format forces a loader; config.FormatAuto picks one per file extension.
	Format    string
	Normalize bool
	Workers   int
}

func (o Options) textField() string {
	if o.TextField == "" {
		return dataset.DefaultTextField
	}
	return o.TextField
}

// Expand resolves glob patterns into a sorted, de-duplicated list of files.
// A pattern without glob metacharacters must name an existing file. Files
// matching any gitignore-style exclude pattern are dropped.
func Expand(patterns, exclude []string) ([]string, error) {
	var skip *ignore.GitIgnore
	if len(exclude) > 0 {
		skip = ignore.CompileIgnoreLines(exclude...)
	}
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		var matches []string
		if strings.ContainsAny(p, "*?[") {
			m, err := filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", p, err)
			}
			sort.Strings(m)
			matches = m
		} else {
			if _, err := os.Stat(p); err != nil {
				return nil, err
			}
			matches = []string{p}
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			if skip != nil && skip.MatchesPath(filepath.ToSlash(m)) {
				logger.Log.Debug("Excluded input", "path", m)
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoInputs, patterns)
	}
	return out, nil
}

// DetectFormat maps a file extension to a loader format.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return config.FormatJSONL, nil
	case ".parquet", ".pq":
		return config.FormatParquet, nil
	case ".arrow", ".ipc", ".feather":
		return config.FormatArrow, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// LoadFile reads every record of one shard. Row indices in malformed-record
// errors are relative to the shard.
func LoadFile(ctx context.Context, path string, opts Options) ([]dataset.Record, error) {
	format := opts.Format
	if format == "" || format == config.FormatAuto {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	start := time.Now()
	var (
		records []dataset.Record
		err     error
	)
	switch format {
	case config.FormatJSONL:
		records, err = loadJSONL(ctx, path, opts.textField())
	case config.FormatParquet:
		records, err = loadParquet(ctx, path, opts.textField())
	case config.FormatArrow:
		records, err = loadArrow(ctx, path, opts.textField())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		if errors.Is(err, dataset.ErrMalformedRecord) {
			metrics.RecordValidationError("load", "malformed_record")
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if opts.Normalize {
		for i := range records {
			records[i] = records[i].Normalize()
		}
	}
	metrics.RecordLoaded(format, len(records))
	logger.Log.Debug("Shard loaded", "path", path, "format", format, "records", len(records), "took", time.Since(start))
	return records, nil
}

// LoadAll reads shards concurrently and concatenates them in the order given.
func LoadAll(ctx context.Context, paths []string, opts Options) ([]dataset.Record, error) {
	if len(paths) == 0 {
		return nil, ErrNoInputs
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	mapper := iter.Mapper[string, []dataset.Record]{MaxGoroutines: workers}
	shards, err := mapper.MapErr(paths, func(p *string) ([]dataset.Record, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return LoadFile(ctx, *p, opts)
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, s := range shards {
		total += len(s)
	}
	out := make([]dataset.Record, 0, total)
	for _, s := range shards {
		out = append(out, s...)
	}
	return out, nil
}

// withRow fills in the row of a malformed-record error produced by
// dataset.NewRecord.
func withRow(err error, row int) error {
	var mre *dataset.MalformedRecordError
	if errors.As(err, &mre) {
		mre.Index = row
	}
	return err
}
