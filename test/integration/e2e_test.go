//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-corpus/internal/config"
	"github.com/23skdu/longbow-corpus/internal/gguf"
	"github.com/23skdu/longbow-corpus/internal/metrics"
	"github.com/23skdu/longbow-corpus/internal/ollama"
	"github.com/23skdu/longbow-corpus/internal/pipeline"
	"github.com/23skdu/longbow-corpus/internal/sink"
	"github.com/23skdu/longbow-corpus/internal/tokenizer"
)

// trainerServer stands in for a remote trainer receiving the split.
type trainerServer struct {
	flight.BaseFlightServer

	mu   sync.Mutex
	rows int64
}

func (s *trainerServer) DoPut(stream flight.FlightService_DoPutServer) error {
	rdr, err := flight.NewRecordReader(stream)
	if err != nil {
		return err
	}
	defer rdr.Release()
	for rdr.Next() {
		s.mu.Lock()
		s.rows += rdr.Record().NumRows()
		s.mu.Unlock()
	}
	return stream.Send(&flight.PutResult{})
}

// setupOllama lays out a models directory holding one model whose GGUF blob
// carries only tokenizer metadata.
func setupOllama(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	manifest := filepath.Join(dir, "manifests", ollama.DefaultRegistry, ollama.DefaultNS, "cyberllm", ollama.DefaultTag)
	require.NoError(t, os.MkdirAll(filepath.Dir(manifest), 0o755))
	data, err := json.Marshal(ollama.Manifest{
		SchemaVersion: 2,
		Layers:        []ollama.Layer{{MediaType: ollama.MediaTypeModel, Digest: "sha256:c0ffee"}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(manifest, data, 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "blobs"), 0o755))
	f, err := os.Create(filepath.Join(dir, "blobs", "sha256-c0ffee"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gguf.WriteMetadata(f, map[string]interface{}{
		gguf.KeyArchitecture:   "llama",
		"llama.context_length": uint32(1024),
		gguf.KeyTokens:         []string{"<unk>", "<s>", "</s>"},
		gguf.KeyEOSTokenID:     uint32(2),
	}))
	return dir
}

func writeShards(t *testing.T, dir string, shards, perShard int) string {
	t.Helper()
	for s := 0; s < shards; s++ {
		var b strings.Builder
		for r := 0; r < perShard; r++ {
			fmt.Fprintf(&b, `{"text": "shard %d record %d: exploit CVE-2024-%04d", "source": "feed"}`+"\n", s, r, r)
		}
		path := filepath.Join(dir, fmt.Sprintf("part-%02d.jsonl", s))
		require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	}
	return filepath.Join(dir, "part-*.jsonl")
}

func TestE2E_PrepareAndPublish(t *testing.T) {
	tempDir := t.TempDir()
	modelsDir := setupOllama(t)

	svc := &trainerServer{}
	srv := flight.NewServerWithMiddleware(nil)
	require.NoError(t, srv.Init("localhost:0"))
	srv.RegisterFlightService(svc)
	go func() { _ = srv.Serve() }()
	defer srv.Shutdown()

	cfg := config.Default()
	cfg.Dataset.Inputs = []string{writeShards(t, tempDir, 6, 200)}
	cfg.Tokenizer.OllamaModel = "cyberllm"
	cfg.Tokenizer.OllamaDir = modelsDir
	cfg.Output.Dir = filepath.Join(tempDir, "out")
	cfg.Output.Format = config.FormatParquet
	cfg.Output.KeepHeldOut = true
	cfg.Flight.Addr = srv.Addr().String()
	require.NoError(t, cfg.Validate())

	before := testutil.ToFloat64(metrics.FlightRowsSent)

	p, err := pipeline.New(&cfg)
	require.NoError(t, err)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	// 1200 records at the default 0.995 fraction keep 6 for training.
	assert.Len(t, res.Sources, 6)
	assert.Equal(t, tokenizer.OriginOllama, res.EOS.Origin)
	assert.Equal(t, "</s>", res.EOS.Marker)
	assert.Len(t, res.Partition.Train, 6)
	assert.Len(t, res.Partition.HeldOut, 1194)
	for _, r := range res.Partition.Train {
		assert.True(t, strings.HasSuffix(r.TextCustom, "</s>"))
	}

	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "train.parquet"))
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "held_out.parquet"))

	m, err := sink.ReadManifest(res.ManifestPath)
	require.NoError(t, err)
	held, err := m.HeldOutSet()
	require.NoError(t, err)
	assert.EqualValues(t, 1194, held.GetCardinality())

	assert.EqualValues(t, 6, res.Published)
	svc.mu.Lock()
	assert.EqualValues(t, 6, svc.rows)
	svc.mu.Unlock()
	assert.Equal(t, before+6, testutil.ToFloat64(metrics.FlightRowsSent))

	// A second run with the same seed selects the same training records.
	p2, err := pipeline.New(&cfg)
	require.NoError(t, err)
	res2, err := p2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Partition.Train, res2.Partition.Train)
}
