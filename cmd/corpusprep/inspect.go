package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/dataset"
	"github.com/23skdu/longbow-corpus/internal/source"
	"github.com/23skdu/longbow-corpus/internal/tokenizer"
)

type inspectReport struct {
	Path   string        `json:"path"`
	Format string        `json:"format"`
	Stats  dataset.Stats `json:"stats"`
}

func newInspectCmd() *cobra.Command {
	var (
		textField     string
		format        string
		eos           string
		tokenizerJSON string
		maxSeqLen     int
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Load one shard and print length statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == config.FormatAuto {
				f, err := source.DetectFormat(path)
				if err != nil {
					return err
				}
				format = f
			}
			records, err := source.LoadFile(cmd.Context(), path, source.Options{TextField: textField, Format: format})
			if err != nil {
				return err
			}
			formatted, err := dataset.Format(records, eos)
			if err != nil {
				return err
			}

			var counter dataset.TokenCounter
			if tokenizerJSON != "" {
				c, err := tokenizer.LoadCounter(tokenizerJSON)
				if err != nil {
					return err
				}
				counter = c
			}
			st, err := dataset.Describe(formatted, counter, maxSeqLen)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inspectReport{Path: path, Format: format, Stats: st})
		},
	}

	f := cmd.Flags()
	f.StringVar(&textField, "text-field", dataset.DefaultTextField, "column holding the raw text")
	f.StringVar(&format, "format", config.FormatAuto, "input format (auto, jsonl, parquet, arrow)")
	f.StringVar(&eos, "eos", "", "marker appended before measuring")
	f.StringVar(&tokenizerJSON, "tokenizer-json", "", "Hugging Face tokenizer.json for token statistics")
	f.IntVar(&maxSeqLen, "max-seq-length", config.Default().Trainer.MaxSeqLength, "sequence length the trainer truncates to")
	return cmd
}
