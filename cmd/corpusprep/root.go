package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/logger"
	"github.com/23skdu/longbow-corpus/internal/metrics"
)

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "corpusprep",
		Short:         "Prepare a text corpus for continual pretraining",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetupWriter(v.GetString("log.level"), v.GetString("log.format"), cmd.ErrOrStderr())
			if addr := v.GetString("metrics.addr"); addr != "" {
				go func() {
					if err := metrics.Serve(cmd.Context(), addr); err != nil {
						logger.Log.Error("Metrics server error", "addr", addr, "error", err)
					}
				}()
				logger.Log.Info("Metrics serving", "addr", addr)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.String("metrics-addr", "", "address to serve Prometheus metrics on")
	bindFlags(v, root, map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"metrics.addr": "metrics-addr",
	}, true)

	root.AddCommand(newPrepareCmd(v), newEOSCmd(), newInspectCmd())
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}
