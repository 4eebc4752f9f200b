package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/23skdu/longbow-corpus/internal/dataset"
	"github.com/23skdu/longbow-corpus/internal/tokenizer"
)

// ManifestFile is written next to the subset files.
const ManifestFile = "manifest.json"

// Manifest records everything needed to reproduce or audit a run.
type Manifest struct {
	RunID     string               `json:"run_id"`
	CreatedAt time.Time            `json:"created_at"`
	Dataset   string               `json:"dataset"`
	Sources   []string             `json:"sources"`
	EOS       tokenizer.Resolution `json:"eos"`
	Split     SplitInfo            `json:"split"`
	Stats     dataset.Stats        `json:"stats"`
	Stages    []StageTiming        `json:"stages"`
	Trainer   TrainerHints         `json:"trainer"`
	// Files maps subset name to the file written for it.
	Files map[string]string `json:"files"`
}

type SplitInfo struct {
	HeldOutFraction float64 `json:"held_out_fraction"`
	Seed            int64   `json:"seed"`
	Total           int     `json:"total"`
	Train           int     `json:"train"`
	HeldOut         int     `json:"held_out"`
	// HeldOutBitmap is the portable roaring serialization of the held-out
	// input indices, base64 encoded.
	HeldOutBitmap string `json:"held_out_bitmap"`
}

type StageTiming struct {
	Name      string  `json:"name"`
	Seconds   float64 `json:"seconds"`
	HeapBytes uint64  `json:"heap_bytes"`
}

// TrainerHints are the settings the trainer must use to read the output.
type TrainerHints struct {
	DatasetTextField string `json:"dataset_text_field"`
	MaxSeqLength     int    `json:"max_seq_length"`
}

// NewManifest starts a manifest with a fresh run id.
func NewManifest(name string, sources []string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Dataset:   name,
		Sources:   sources,
		Files:     make(map[string]string),
	}
}

// SetSplit fills in split sizes and the held-out membership bitmap.
func (m *Manifest) SetSplit(opts dataset.SplitOptions, total, train, heldOut int, set *roaring.Bitmap) error {
	m.Split = SplitInfo{
		HeldOutFraction: opts.HeldOutFraction,
		Seed:            opts.Seed,
		Total:           total,
		Train:           train,
		HeldOut:         heldOut,
	}
	if set == nil {
		return nil
	}
	enc, err := set.ToBase64()
	if err != nil {
		return fmt.Errorf("encode held-out bitmap: %w", err)
	}
	m.Split.HeldOutBitmap = enc
	return nil
}

// HeldOutSet decodes the held-out membership bitmap.
func (m *Manifest) HeldOutSet() (*roaring.Bitmap, error) {
	bm := roaring.New()
	if m.Split.HeldOutBitmap == "" {
		return bm, nil
	}
	if _, err := bm.FromBase64(m.Split.HeldOutBitmap); err != nil {
		return nil, fmt.Errorf("decode held-out bitmap: %w", err)
	}
	return bm, nil
}

func (m *Manifest) AddStage(name string, d time.Duration, heap uint64) {
	m.Stages = append(m.Stages, StageTiming{Name: name, Seconds: d.Seconds(), HeapBytes: heap})
}

// WriteManifest writes m to dir/manifest.json and returns the path.
func WriteManifest(dir string, m *Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
