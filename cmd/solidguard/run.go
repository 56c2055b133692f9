package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/handler"
	"github.com/xxxsen/solidguard/internal/job"
	"github.com/xxxsen/solidguard/internal/middleware"
	"github.com/xxxsen/solidguard/internal/schedule"
	"github.com/xxxsen/solidguard/internal/service"
)

func newRunCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the classification api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.loadStore(ctx); err != nil {
				return err
			}
			return runServer(ctx, a)
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", a.files.Type()),
		zap.Int("chunks", a.store.Len()),
		zap.Strings("models", a.router.Models()),
		zap.Bool("archive", a.db != nil),
	)

	var scheduler *schedule.CronScheduler
	if a.cacheRepo != nil {
		scheduler = schedule.NewCronScheduler()
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Database.EmbeddingCacheDays)
		if err := scheduler.AddJob(cleanup, cfg.Database.CleanupCron); err != nil {
			return fmt.Errorf("schedule %s: %w", cleanup.Name(), err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	authService := service.NewAuthService(cfg.Auth.PasswordHash, []byte(cfg.Auth.JWTSecret),
		time.Hour*time.Duration(cfg.Auth.JWTTTLHours))
	deps := handler.RouterDeps{
		Classify:        handler.NewClassifyHandler(a.classifyService()),
		Generate:        handler.NewGenerateHandler(a.generateService()),
		Health:          handler.NewHealthHandler(a.store, a.router),
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		RateLimitWindow: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}
	if authService.Enabled() {
		deps.Auth = handler.NewAuthHandler(authService)
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
