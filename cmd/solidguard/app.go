package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/ai"
	"github.com/xxxsen/solidguard/internal/config"
	"github.com/xxxsen/solidguard/internal/db"
	"github.com/xxxsen/solidguard/internal/embedcache"
	"github.com/xxxsen/solidguard/internal/filestore"
	"github.com/xxxsen/solidguard/internal/knowledge"
	"github.com/xxxsen/solidguard/internal/prompt"
	"github.com/xxxsen/solidguard/internal/repo"
	"github.com/xxxsen/solidguard/internal/service"
)

// app holds the clients shared by every command.
type app struct {
	cfg       *config.Config
	router    *ai.Router
	embedder  ai.IEmbedder
	files     filestore.Store
	store     *knowledge.Store
	templates *prompt.Templates
	db        *sql.DB
	cacheRepo *repo.EmbeddingCacheRepo
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if cfg.Database.Enabled() {
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		a.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
	}
	router, err := buildRouter(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.router = router
	embedder, err := buildEmbedder(cfg, a.cacheRepo)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = embedder
	files, err := filestore.New(cfg.Knowledge.FileStore)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	a.files = files
	a.store = knowledge.NewStore(files, cfg.Knowledge.Key, embedder)
	templates, err := prompt.LoadTemplates(cfg.Prompts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.templates = templates
	return a, nil
}

func buildRouter(cfg *config.Config) (*ai.Router, error) {
	entries := make([]ai.CompleterEntry, 0, len(cfg.Completion.Providers))
	for _, p := range cfg.Completion.Providers {
		provider, err := ai.NewProvider(p.Name, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init completion provider %s: %w", p.Name, err)
		}
		entries = append(entries, ai.CompleterEntry{
			Name:      p.Name,
			Models:    p.Models,
			Completer: ai.WrapResilientCompleter(provider, "completion-"+p.Name, cfg.Resilience),
		})
	}
	return ai.NewRouter(entries, cfg.Completion.DefaultModel)
}

// buildEmbedder layers provider, resilience guard, persistent cache and
// in-memory cache, innermost first.
func buildEmbedder(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	provider, err := ai.NewEmbedProvider(cfg.Embedding.Provider, cfg.Embedding.Data)
	if err != nil {
		return nil, fmt.Errorf("init embedding provider %s: %w", cfg.Embedding.Provider, err)
	}
	var e ai.IEmbedder = ai.NewEmbedder(provider, cfg.Embedding.Model)
	e = ai.WrapResilientEmbedder(e, "embedding-"+cfg.Embedding.Provider, cfg.Resilience)
	if cacheRepo != nil {
		e = embedcache.WrapDBCacheToEmbedder(e, cacheRepo)
	}
	return embedcache.WrapLruCacheToEmbedder(e, cfg.Embedding.CacheSize, time.Duration(cfg.Embedding.CacheTTLSeconds)*time.Second), nil
}

func (a *app) classifyService() *service.ClassifyService {
	opts := []service.ClassifyOption{service.WithDefaultK(a.cfg.Knowledge.DefaultK)}
	if a.db != nil {
		opts = append(opts, service.WithArchive(repo.NewClassificationRepo(a.db)))
	}
	return service.NewClassifyService(a.router, a.store, a.templates, opts...)
}

func (a *app) generateService() *service.GenerateService {
	return service.NewGenerateService(a.router, a.templates, service.GenerateConfig{
		MaxAttempts: a.cfg.Generate.MaxAttempts,
		Temperature: a.cfg.Generate.Temperature,
	})
}

func (a *app) builder() *knowledge.Builder {
	return knowledge.NewBuilder(a.embedder, knowledge.BuilderConfig{
		ExplanationMaxChars: a.cfg.Knowledge.ExplanationMaxChars,
		BatchSize:           a.cfg.Knowledge.BatchSize,
	})
}

// loadStore reads the knowledge store. A missing or malformed store is fatal.
func (a *app) loadStore(ctx context.Context) error {
	if err := a.store.Load(ctx); err != nil {
		return fmt.Errorf("load knowledge store %s: %w", a.cfg.Knowledge.Key, err)
	}
	return nil
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		logutil.GetLogger(context.Background()).Warn("close db failed", zap.Error(err))
	}
}
