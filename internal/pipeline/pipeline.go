package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/dataset"
	"github.com/23skdu/longbow-corpus/internal/flight"
	"github.com/23skdu/longbow-corpus/internal/logger"
	"github.com/23skdu/longbow-corpus/internal/metrics"
	"github.com/23skdu/longbow-corpus/internal/sink"
	"github.com/23skdu/longbow-corpus/internal/source"
	"github.com/23skdu/longbow-corpus/internal/tokenizer"
)

// Stage names, in run order.
const (
	StageResolveEOS = "resolve_eos"
	StageLoad       = "load"
	StageFormat     = "format"
	StageSplit      = "split"
	StageDescribe   = "describe"
	StageWrite      = "write"
	StageManifest   = "manifest"
	StagePublish    = "publish"
)

// Pipeline prepares one corpus for continual pretraining.
type Pipeline struct {
	cfg       *config.Config
	counter   dataset.TokenCounter
	publisher flight.Publisher
}

type Option func(*Pipeline)

// WithTokenCounter overrides the counter loaded from tokenizer.tokenizer_json.
func WithTokenCounter(c dataset.TokenCounter) Option {
	return func(p *Pipeline) { p.counter = c }
}

// WithPublisher overrides the Flight client built from flight.addr.
func WithPublisher(pub flight.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// New validates cfg and builds a pipeline.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if p.counter == nil && cfg.Tokenizer.TokenizerJSON != "" {
		c, err := tokenizer.LoadCounter(cfg.Tokenizer.TokenizerJSON)
		if err != nil {
			return nil, err
		}
		p.counter = c
	}
	if p.publisher == nil && cfg.Flight.Addr != "" {
		p.publisher = flight.NewClient(cfg.Flight.Addr)
	}
	return p, nil
}

type subset struct {
	name    string
	records []dataset.FormattedRecord
}

// Result describes a finished run.
type Result struct {
	EOS       tokenizer.Resolution
	Sources   []string
	Partition dataset.Partition[dataset.FormattedRecord]
	Stats     dataset.Stats
	// Files maps subset name to the path written.
	Files        map[string]string
	ManifestPath string
	Manifest     *sink.Manifest
	Published    int64
}

// Run executes every stage in order. It stops at the first error or when ctx
// is cancelled between stages; files already written are left in place.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	res := &Result{Files: make(map[string]string)}
	runStart := time.Now()

	var (
		records   []dataset.Record
		formatted []dataset.FormattedRecord
	)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageResolveEOS, func(context.Context) error {
			eos, err := tokenizer.ResolveEOS(tokenizer.Source{
				EOSToken:            cfg.Tokenizer.EOSToken,
				GGUFPath:            cfg.Tokenizer.GGUF,
				OllamaModel:         cfg.Tokenizer.OllamaModel,
				OllamaDir:           cfg.Tokenizer.OllamaDir,
				TokenizerConfigPath: cfg.Tokenizer.ConfigPath,
			})
			if err != nil {
				return err
			}
			res.EOS = eos
			logger.Log.Info("Resolved EOS marker", "marker", eos.Marker, "origin", eos.Origin)
			if eos.Model != nil && eos.Model.ContextLength < cfg.Trainer.MaxSeqLength {
				logger.Log.Warn("max_seq_length exceeds model context length",
					"max_seq_length", cfg.Trainer.MaxSeqLength, "context_length", eos.Model.ContextLength)
			}
			return nil
		}},
		{StageLoad, func(ctx context.Context) error {
			paths, err := source.Expand(cfg.Dataset.Inputs, cfg.Dataset.Exclude)
			if err != nil {
				return err
			}
			res.Sources = paths
			records, err = source.LoadAll(ctx, paths, source.Options{
				TextField: cfg.Dataset.TextField,
				Format:    cfg.Dataset.Format,
				Normalize: cfg.Dataset.Normalize,
				Workers:   cfg.Dataset.Workers,
			})
			if err != nil {
				return err
			}
			logger.Log.Info("Loaded corpus", "shards", len(paths), "records", len(records))
			return nil
		}},
		{StageFormat, func(context.Context) error {
			var err error
			formatted, err = dataset.Format(records, res.EOS.Marker)
			if err != nil {
				if errors.Is(err, dataset.ErrMalformedRecord) {
					metrics.RecordValidationError("format", "malformed_record")
				}
				return err
			}
			records = nil
			metrics.RecordFormatted(len(formatted))
			return nil
		}},
		{StageSplit, func(context.Context) error {
			opts := dataset.SplitOptions{HeldOutFraction: cfg.Split.HeldOutFraction, Seed: cfg.Split.Seed}
			part, err := dataset.Split(formatted, opts)
			if err != nil {
				return err
			}
			res.Partition = part
			metrics.RecordSplit(len(part.Train), len(part.HeldOut))
			logger.Log.Info("Split corpus", "train", len(part.Train), "held_out", len(part.HeldOut),
				"held_out_fraction", opts.HeldOutFraction, "seed", opts.Seed)
			if len(part.Train) == 0 {
				logger.Log.Warn("Training subset is empty", "records", len(formatted))
			}
			return nil
		}},
		{StageDescribe, func(context.Context) error {
			st, err := dataset.Describe(res.Partition.Train, p.counter, cfg.Trainer.MaxSeqLength)
			if err != nil {
				return err
			}
			res.Stats = st
			metrics.RecordOverlong(st.OverMaxSeqLen)
			logger.Log.Info("Training subset statistics", "records", st.Records,
				"chars_mean", st.Chars.Mean, "chars_p95", st.Chars.P95, "words_mean", st.Words.Mean)
			if st.OverMaxSeqLen > 0 {
				logger.Log.Warn("Records will be truncated by the trainer",
					"count", st.OverMaxSeqLen, "max_seq_length", cfg.Trainer.MaxSeqLength)
			}
			return nil
		}},
		{StageWrite, func(context.Context) error {
			subsets := []subset{{sink.SubsetTrain, res.Partition.Train}}
			if cfg.Output.KeepHeldOut {
				subsets = append(subsets, subset{sink.SubsetHeldOut, res.Partition.HeldOut})
			}
			for _, s := range subsets {
				path := filepath.Join(cfg.Output.Dir, sink.FileName(s.name, cfg.Output.Format))
				if err := sink.WriteRecords(path, cfg.Output.Format, cfg.Trainer.DatasetTextField, s.records); err != nil {
					return err
				}
				res.Files[s.name] = path
				logger.Log.Info("Wrote subset", "subset", s.name, "path", path, "records", len(s.records))
			}
			return nil
		}},
	}

	manifest := sink.NewManifest(cfg.Dataset.Name, nil)
	for _, st := range stages {
		if err := p.runStage(ctx, manifest, st.name, st.fn); err != nil {
			return nil, err
		}
	}

	if err := p.runStage(ctx, nil, StageManifest, func(context.Context) error {
		manifest.Sources = res.Sources
		manifest.EOS = res.EOS
		manifest.Stats = res.Stats
		manifest.Trainer = sink.TrainerHints{
			DatasetTextField: cfg.Trainer.DatasetTextField,
			MaxSeqLength:     cfg.Trainer.MaxSeqLength,
		}
		for name, path := range res.Files {
			manifest.Files[name] = filepath.Base(path)
		}
		part := res.Partition
		err := manifest.SetSplit(dataset.SplitOptions{HeldOutFraction: cfg.Split.HeldOutFraction, Seed: cfg.Split.Seed},
			len(part.Train)+len(part.HeldOut), len(part.Train), len(part.HeldOut), part.HeldOutSet)
		if err != nil {
			return err
		}
		path, err := sink.WriteManifest(cfg.Output.Dir, manifest)
		if err != nil {
			return err
		}
		res.ManifestPath = path
		res.Manifest = manifest
		return nil
	}); err != nil {
		return nil, err
	}

	if p.publisher != nil {
		if err := p.runStage(ctx, nil, StagePublish, p.publish(res)); err != nil {
			return nil, err
		}
	}

	logger.Log.Info("Preparation complete", "run_id", manifest.RunID, "took", time.Since(runStart),
		"dataset_text_field", cfg.Trainer.DatasetTextField, "max_seq_length", cfg.Trainer.MaxSeqLength)
	return res, nil
}

func (p *Pipeline) publish(res *Result) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		if err := p.publisher.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			if cerr := p.publisher.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("close publisher: %w", cerr))
			}
		}()
		n, err := p.publisher.Publish(ctx, p.cfg.FlightPath(), p.cfg.Trainer.DatasetTextField, res.Partition.Train)
		res.Published = n
		return err
	}
}

// runStage times fn, samples the heap and records both. m may be nil for
// stages that run after the manifest is sealed.
func (p *Pipeline) runStage(ctx context.Context, m *sink.Manifest, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	start := time.Now()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	took := time.Since(start)
	heap := metrics.SampleHeap()
	metrics.RecordStage(name, took)
	if m != nil {
		m.AddStage(name, took, heap)
	}
	logger.Log.Debug("Stage finished", "stage", name, "took", took, "heap_mb", heap>>20)
	return nil
}
