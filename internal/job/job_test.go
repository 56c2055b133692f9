package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/solidguard/internal/config"
	"github.com/xxxsen/solidguard/internal/filestore"
	"github.com/xxxsen/solidguard/internal/knowledge"
)

type recordingEvictor struct {
	cutoff int64
	err    error
}

func (r *recordingEvictor) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	r.cutoff = cutoff
	return 2, r.err
}

func TestEmbeddingCacheCleanupCutoff(t *testing.T) {
	ev := &recordingEvictor{}
	j := NewEmbeddingCacheCleanupJob(ev, 0)
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.AddDate(0, 0, -30).Unix(), ev.cutoff)

	ev.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
}

func TestEmbeddingCacheCleanupWithoutCache(t *testing.T) {
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 7).Run(context.Background()))
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func (unitEmbedder) ModelName() string { return "unit" }

func TestStoreRebuildJob(t *testing.T) {
	docs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "reentrancy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "reentrancy", "basic.txt"),
		[]byte("AttackType: reentrancy\n\nExternal call before state update.\n"), 0o644))

	files, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	j := NewStoreRebuildJob(knowledge.NewBuilder(unitEmbedder{}, knowledge.BuilderConfig{}), files, "store.jsonl", docs)
	require.Equal(t, "knowledge_store_rebuild", j.Name())

	stats, err := j.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Documents)
	require.Equal(t, 1, stats.Chunks)

	store := knowledge.NewStore(files, "store.jsonl", unitEmbedder{})
	require.NoError(t, store.Load(context.Background()))
	require.Equal(t, 1, store.Len())
	require.Equal(t, 2, store.Dimension())
}
