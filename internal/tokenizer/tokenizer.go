package tokenizer

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/23skdu/longbow-corpus/internal/gguf"
	"github.com/23skdu/longbow-corpus/internal/ollama"
)

var ErrNoEOSSource = errors.New("no end-of-sequence marker source configured")

// Origins reported in a Resolution.
const (
	OriginExplicit        = "explicit"
	OriginGGUF            = "gguf"
	OriginOllama          = "ollama"
	OriginTokenizerConfig = "tokenizer_config"
)

// Source lists the places an end-of-sequence marker can come from. The first
// configured one wins, in field order.
type Source struct {
	// EOSToken is used verbatim when non-nil, including the empty string.
	EOSToken            *string
	GGUFPath            string
	OllamaModel         string
	OllamaDir           string
	TokenizerConfigPath string
}

// Resolution is a resolved marker and where it came from.
type Resolution struct {
	Marker string          `json:"marker"`
	Origin string          `json:"origin"`
	Path   string          `json:"path,omitempty"`
	Model  *gguf.ModelInfo `json:"model,omitempty"`
}

// ResolveEOS finds the end-of-sequence marker described by src.
func ResolveEOS(src Source) (Resolution, error) {
	switch {
	case src.EOSToken != nil:
		return Resolution{Marker: *src.EOSToken, Origin: OriginExplicit}, nil
	case src.GGUFPath != "":
		res, err := fromGGUF(src.GGUFPath)
		if err != nil {
			return Resolution{}, err
		}
		res.Origin = OriginGGUF
		return res, nil
	case src.OllamaModel != "":
		r, err := ollama.NewResolver(src.OllamaDir)
		if err != nil {
			return Resolution{}, err
		}
		path, err := r.ResolveModelPath(src.OllamaModel)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve ollama model %s: %w", src.OllamaModel, err)
		}
		res, err := fromGGUF(path)
		if err != nil {
			return Resolution{}, err
		}
		res.Origin = OriginOllama
		return res, nil
	case src.TokenizerConfigPath != "":
		marker, err := EOSFromTokenizerConfig(src.TokenizerConfigPath)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Marker: marker, Origin: OriginTokenizerConfig, Path: src.TokenizerConfigPath}, nil
	}
	return Resolution{}, ErrNoEOSSource
}

func fromGGUF(path string) (Resolution, error) {
	md, err := gguf.LoadFile(path)
	if err != nil {
		return Resolution{}, err
	}
	marker, err := md.EOSToken()
	if err != nil {
		return Resolution{}, fmt.Errorf("eos token in %s: %w", path, err)
	}
	info := md.Info()
	return Resolution{Marker: marker, Path: path, Model: &info}, nil
}

// EOSFromTokenizerConfig reads eos_token from a Hugging Face
// tokenizer_config.json. The value is either a string or an added-token
// object with a "content" field.
func EOSFromTokenizerConfig(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var cfg struct {
		EOSToken json.RawMessage `json:"eos_token"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	if len(cfg.EOSToken) == 0 || string(cfg.EOSToken) == "null" {
		return "", fmt.Errorf("%s: eos_token not set", path)
	}

	var s string
	if err := json.Unmarshal(cfg.EOSToken, &s); err == nil {
		return s, nil
	}
	var tok struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(cfg.EOSToken, &tok); err != nil || tok.Content == nil {
		return "", fmt.Errorf("%s: eos_token is neither a string nor a token object", path)
	}
	return *tok.Content, nil
}
