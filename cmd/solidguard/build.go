package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/solidguard/internal/job"
	"github.com/xxxsen/solidguard/internal/schedule"
)

func newBuildCmd(load configLoader) *cobra.Command {
	var (
		docsRoot string
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "chunk and embed the reference documents into the knowledge store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if docsRoot == "" {
				docsRoot = cfg.Knowledge.DocsRoot
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rebuild := job.NewStoreRebuildJob(a.builder(), a.files, cfg.Knowledge.Key, docsRoot)
			if !watch {
				stats, err := rebuild.Build(ctx)
				if err != nil {
					return err
				}
				return printJSON(stats)
			}
			if cfg.Knowledge.RebuildCron == "" {
				return fmt.Errorf("--watch requires knowledge.rebuild_cron")
			}
			scheduler := schedule.NewCronScheduler()
			if err := scheduler.AddJob(rebuild, cfg.Knowledge.RebuildCron); err != nil {
				return err
			}
			if a.cacheRepo != nil {
				cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Database.EmbeddingCacheDays)
				if err := scheduler.AddJob(cleanup, cfg.Database.CleanupCron); err != nil {
					return err
				}
			}
			scheduler.Start(ctx)
			defer scheduler.Stop()
			if err := scheduler.RunNow(rebuild.Name()); err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("watching for scheduled rebuilds",
				zap.Time("next", scheduler.Next(rebuild.Name())))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&docsRoot, "docs", "", "reference document root (defaults to knowledge.docs_root)")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and rebuild on knowledge.rebuild_cron")
	return cmd
}
