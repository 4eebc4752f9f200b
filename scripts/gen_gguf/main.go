// gen_gguf writes a tokenizer-only GGUF file (metadata, no tensors) for
// exercising EOS resolution without a real model download.
package main

import (
	"flag"
	"os"
	"strings"

	"github.com/23skdu/longbow-corpus/internal/gguf"
	"github.com/23skdu/longbow-corpus/internal/logger"
)

func main() {
	out := flag.String("out", "test.gguf", "output path")
	arch := flag.String("arch", "llama", "general.architecture")
	name := flag.String("name", "fixture", "general.name")
	ctxLen := flag.Uint("ctx", 8192, "<arch>.context_length")
	tokens := flag.String("tokens", "<unk>,<|begin_of_text|>,<|end_of_text|>", "comma-separated vocabulary")
	eos := flag.Uint("eos", 2, "tokenizer.ggml.eos_token_id")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		logger.Log.Error("create output", "path", *out, "error", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	err = gguf.WriteMetadata(f, map[string]interface{}{
		gguf.KeyArchitecture:      *arch,
		gguf.KeyName:              *name,
		*arch + ".context_length": uint32(*ctxLen),
		gguf.KeyTokenizer:         "gpt2",
		gguf.KeyTokens:            strings.Split(*tokens, ","),
		gguf.KeyBOSTokenID:        uint32(1),
		gguf.KeyEOSTokenID:        uint32(*eos),
	})
	if err != nil {
		logger.Log.Error("write gguf", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Log.Info("Wrote GGUF fixture", "path", *out)
}
