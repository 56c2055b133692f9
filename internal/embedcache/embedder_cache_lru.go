package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/solidguard/internal/ai"
	"go.uber.org/zap"
)

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := l.next.ModelName()
	return embedThrough(ctx, texts, l.next,
		func(_ context.Context, text string) ([]float32, bool, error) {
			key, _ := buildCacheKey(modelName, text)
			cached, ok := l.cache.Get(key)
			if !ok {
				return nil, false, nil
			}
			return cloneEmbedding(cached), true, nil
		},
		func(_ context.Context, text string, vec []float32) {
			key, _ := buildCacheKey(modelName, text)
			l.cache.Add(key, cloneEmbedding(vec))
		},
		"lru",
	)
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

type lookupFunc func(ctx context.Context, text string) ([]float32, bool, error)
type storeFunc func(ctx context.Context, text string, vec []float32)

// embedThrough answers what it can from the cache and sends only the misses
// to next, preserving input order in the result.
func embedThrough(ctx context.Context, texts []string, next ai.IEmbedder, lookup lookupFunc, store storeFunc, layer string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missText := make([]string, 0, len(texts))
	for i, text := range texts {
		vec, ok, err := lookup(ctx, text)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if hits := len(texts) - len(missText); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit",
			zap.String("layer", layer),
			zap.Int("hits", hits),
			zap.Int("misses", len(missText)),
		)
	}
	if len(missText) == 0 {
		return out, nil
	}
	vectors, err := next.Embed(ctx, missText)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = vectors[j]
		store(ctx, missText[j], vectors[j])
	}
	return out, nil
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
