package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/repo"
	"go.uber.org/zap"
)

func WrapDBCacheToEmbedder(e ai.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

type dbEmbedder struct {
	next ai.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := normalizeModel(d.next.ModelName())
	return embedThrough(ctx, texts, d.next,
		func(ctx context.Context, text string) ([]float32, bool, error) {
			_, contentHash := buildCacheKey(modelName, text)
			return d.repo.Get(ctx, modelName, contentHash)
		},
		func(ctx context.Context, text string, vec []float32) {
			_, contentHash := buildCacheKey(modelName, text)
			if err := d.repo.Save(ctx, &model.EmbeddingCache{
				ModelName:   modelName,
				ContentHash: contentHash,
				Embedding:   vec,
				Ctime:       time.Now().Unix(),
			}); err != nil {
				logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
			}
		},
		"db",
	)
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func normalizeModel(modelName string) string {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		return "unknown"
	}
	return modelName
}

func buildCacheKey(modelName, text string) (string, string) {
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + normalizeModel(modelName) + ":" + contentHash, contentHash
}
