package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/logger"
	"github.com/23skdu/longbow-corpus/internal/pipeline"
)

func newPrepareCmd(v *viper.Viper) *cobra.Command {
	var configPath, eos string

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Format, split and write a corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			// --eos has no config default, so an unset flag must not become "".
			if cmd.Flags().Changed("eos") {
				cfg.Tokenizer.EOSToken = &eos
			}
			// The config file may change logging.
			logger.SetupWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "train=%d held_out=%d manifest=%s\n",
				len(res.Partition.Train), len(res.Partition.HeldOut), res.ManifestPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to a YAML config file")
	f.StringVar(&eos, "eos", "", "end-of-sequence marker appended to every record")
	f.StringSlice("input", nil, "input files or glob patterns (repeatable)")
	f.StringSlice("exclude", nil, "gitignore-style patterns removed from the inputs")
	f.String("output", "", "output directory")
	f.Float64("held-out", 0, "fraction of records held out of training, in (0,1)")
	f.Int64("seed", 0, "shuffle seed")
	f.String("format", "", "output format (jsonl, parquet, arrow)")
	f.Bool("keep-held-out", false, "also write the held-out subset")
	f.String("flight-addr", "", "Arrow Flight endpoint to publish the training subset to")
	bindFlags(v, cmd, map[string]string{
		"dataset.inputs":          "input",
		"dataset.exclude":         "exclude",
		"output.dir":              "output",
		"split.held_out_fraction": "held-out",
		"split.seed":              "seed",
		"output.format":           "format",
		"output.keep_held_out":    "keep-held-out",
		"flight.addr":             "flight-addr",
	}, false)
	return cmd
}
