package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-corpus/internal/gguf"
	"github.com/23skdu/longbow-corpus/internal/tokenizer"
)

// Arrays printed only by length in metadata dumps.
var largeKeys = map[string]bool{
	gguf.KeyTokens:              true,
	"tokenizer.ggml.merges":     true,
	"tokenizer.ggml.scores":     true,
	"tokenizer.ggml.token_type": true,
}

func newEOSCmd() *cobra.Command {
	var (
		src      tokenizer.Source
		showMeta bool
	)

	cmd := &cobra.Command{
		Use:   "eos",
		Short: "Print the end-of-sequence marker of a tokenizer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := tokenizer.ResolveEOS(src)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%q\t(%s)\n", res.Marker, res.Origin)
			if m := res.Model; m != nil {
				fmt.Fprintf(out, "model: %s arch=%s context_length=%d vocab=%d\n",
					m.Name, m.Architecture, m.ContextLength, m.VocabSize)
			}
			if showMeta && res.Model != nil {
				md, err := gguf.LoadFile(res.Path)
				if err != nil {
					return err
				}
				dumpMetadata(out, md)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&src.GGUFPath, "gguf", "", "GGUF model file")
	f.StringVar(&src.OllamaModel, "ollama", "", "Ollama model name[:tag]")
	f.StringVar(&src.OllamaDir, "ollama-dir", "", "Ollama models directory (default ~/.ollama/models)")
	f.StringVar(&src.TokenizerConfigPath, "tokenizer-config", "", "Hugging Face tokenizer_config.json")
	f.BoolVar(&showMeta, "metadata", false, "also print GGUF key/value metadata")
	cmd.MarkFlagsMutuallyExclusive("gguf", "ollama", "tokenizer-config")
	cmd.MarkFlagsOneRequired("gguf", "ollama", "tokenizer-config")
	return cmd
}

func dumpMetadata(w io.Writer, md *gguf.Metadata) {
	keys := make([]string, 0, len(md.KV))
	for k := range md.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "=== Metadata (GGUF v%d, %d keys) ===\n", md.Header.Version, len(keys))
	for _, k := range keys {
		v := md.KV[k]
		if largeKeys[k] {
			if arr, ok := v.([]interface{}); ok {
				fmt.Fprintf(w, "%s: [%d entries]\n", k, len(arr))
				continue
			}
		}
		fmt.Fprintf(w, "%s: %v\n", k, v)
	}
}
