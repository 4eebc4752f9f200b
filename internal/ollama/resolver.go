package ollama

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

const (
	DefaultTag      = "latest"
	DefaultRegistry = "registry.ollama.ai"
	DefaultNS       = "library"
	MediaTypeModel  = "application/vnd.ollama.image.model"
)

var (
	ErrManifestNotFound = errors.New("model manifest not found")
	ErrNoModelLayer     = errors.New("no model layer found in manifest")
	ErrBlobNotFound     = errors.New("model blob not found")
)

type Manifest struct {
	SchemaVersion int     `json:"schemaVersion"`
	Layers        []Layer `json:"layers"`
}

type Layer struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

// Reference is a parsed model name such as "llama3", "llama3:8b" or
// "myorg/cyberllm:q4".
type Reference struct {
	Namespace string
	Name      string
	Tag       string
}

// ParseReference splits name[:tag], defaulting the namespace and tag.
func ParseReference(model string) (Reference, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return Reference{}, fmt.Errorf("empty model name")
	}
	ref := Reference{Namespace: DefaultNS, Tag: DefaultTag}

	name := model
	if i := strings.LastIndex(model, ":"); i > strings.LastIndex(model, "/") {
		name, ref.Tag = model[:i], model[i+1:]
		if ref.Tag == "" {
			return Reference{}, fmt.Errorf("empty tag in model name %q", model)
		}
	}
	if ns, n, ok := strings.Cut(name, "/"); ok {
		ref.Namespace, name = ns, n
	}
	if name == "" || strings.Contains(name, "/") {
		return Reference{}, fmt.Errorf("invalid model name %q", model)
	}
	ref.Name = name
	return ref, nil
}

func (r Reference) String() string {
	if r.Namespace == DefaultNS {
		return r.Name + ":" + r.Tag
	}
	return r.Namespace + "/" + r.Name + ":" + r.Tag
}

// DefaultDir is ~/.ollama/models.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ollama", "models"), nil
}

// Resolver finds GGUF blobs in an Ollama models directory.
type Resolver struct {
	Dir string
}

func NewResolver(dir string) (*Resolver, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &Resolver{Dir: dir}, nil
}

func (r *Resolver) manifestPath(ref Reference) string {
	return filepath.Join(r.Dir, "manifests", DefaultRegistry, ref.Namespace, ref.Name, ref.Tag)
}

// ResolveModelPath returns the GGUF blob path for a model name.
func (r *Resolver) ResolveModelPath(model string) (string, error) {
	ref, err := ParseReference(model)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(r.manifestPath(ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrManifestNotFound, ref)
		}
		return "", err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("decode manifest for %s: %w", ref, err)
	}

	var blobDigest string
	for _, l := range m.Layers {
		if l.MediaType == MediaTypeModel {
			blobDigest = l.Digest
			break
		}
	}
	if blobDigest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoModelLayer, ref)
	}

	// Digest "sha256:hash" is stored as blobs/sha256-hash
	blobPath := filepath.Join(r.Dir, "blobs", strings.Replace(blobDigest, ":", "-", 1))
	if _, err := os.Stat(blobPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBlobNotFound, blobPath)
	}
	return blobPath, nil
}
