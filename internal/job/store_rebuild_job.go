package job

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/filestore"
	"github.com/xxxsen/solidguard/internal/knowledge"
)

// StoreRebuildJob re-chunks and re-embeds the reference corpus into the
// knowledge store file. The file is replaced wholesale; an aborted run leaves
// the records written before the failure.
type StoreRebuildJob struct {
	builder  *knowledge.Builder
	files    filestore.Store
	key      string
	docsRoot string
}

func NewStoreRebuildJob(builder *knowledge.Builder, files filestore.Store, key, docsRoot string) *StoreRebuildJob {
	return &StoreRebuildJob{builder: builder, files: files, key: key, docsRoot: docsRoot}
}

func (j *StoreRebuildJob) Name() string {
	return "knowledge_store_rebuild"
}

func (j *StoreRebuildJob) Run(ctx context.Context) error {
	_, err := j.Build(ctx)
	return err
}

func (j *StoreRebuildJob) Build(ctx context.Context) (*knowledge.BuildStats, error) {
	w, err := j.files.Create(ctx, j.key)
	if err != nil {
		return nil, fmt.Errorf("create knowledge store %s: %w", j.key, err)
	}
	stats, buildErr := j.builder.Build(ctx, j.docsRoot, w)
	if err := w.Close(); err != nil && buildErr == nil {
		buildErr = fmt.Errorf("close knowledge store %s: %w", j.key, err)
	}
	if buildErr != nil {
		return stats, buildErr
	}
	logutil.GetLogger(ctx).Info("knowledge store rebuilt",
		zap.String("store", j.files.Type()),
		zap.String("key", j.key),
		zap.Int("documents", stats.Documents),
		zap.Int("chunks", stats.Chunks),
		zap.Int("dimension", stats.Dimension),
	)
	return stats, nil
}
