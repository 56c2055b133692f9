package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/report"
	"github.com/xxxsen/solidguard/internal/service"
)

func newClassifyCmd(load configLoader) *cobra.Command {
	var (
		mode       string
		modelName  string
		k          int
		contractID string
		outDir     string
		withReport bool
	)
	cmd := &cobra.Command{
		Use:   "classify <contract.sol | contract-dir>",
		Short: "classify one contract and write classify_<mode>.json next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := model.ParseMode(mode)
			if !ok {
				return fmt.Errorf("mode must be 'raw' or 'rag', got %q", mode)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			if m == model.ModeRAG {
				if err := a.loadStore(ctx); err != nil {
					return err
				}
			}
			target, err := service.ResolveTarget(args[0], contractID, outDir)
			if err != nil {
				return err
			}
			out, path, err := service.NewFileClassifier(a.classifyService()).ClassifyFile(ctx, target, m, modelName, k)
			if err != nil {
				return err
			}
			if withReport {
				src, err := os.ReadFile(target.Path)
				if err != nil {
					return err
				}
				if err := writeReport(target.OutDir, m, out.Result, string(src)); err != nil {
					return err
				}
			}
			return printJSON(map[string]interface{}{
				"output": path,
				"valid":  out.Valid,
				"errors": out.Errors,
				"result": out.Result,
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(model.ModeRaw), "raw or rag")
	cmd.Flags().StringVar(&modelName, "model", "", "completion model (defaults to completion.default_model)")
	cmd.Flags().IntVar(&k, "k", 0, "documents to retrieve in rag mode (defaults to knowledge.default_k)")
	cmd.Flags().StringVar(&contractID, "contract-id", "", "override the contract id")
	cmd.Flags().StringVar(&outDir, "outdir", "", "output directory (defaults to the contract's directory)")
	cmd.Flags().BoolVar(&withReport, "report", false, "also write classify_<mode>.md and .html")
	return cmd
}

func writeReport(dir string, mode model.Mode, result *model.ClassificationResult, contract string) error {
	md := report.Markdown(result, contract)
	if err := os.WriteFile(service.OutputPath(dir, mode, "md"), []byte(md), 0o644); err != nil {
		return err
	}
	html, err := report.HTML(md)
	if err != nil {
		return err
	}
	return os.WriteFile(service.OutputPath(dir, mode, "html"), []byte(html), 0o644)
}

func newClassifyAllCmd(load configLoader) *cobra.Command {
	var (
		modes       string
		modelName   string
		k           int
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "classify-all <root>",
		Short: "classify every <root>/<category>/<contract>/ directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var parsed []model.Mode
			for _, item := range strings.Split(modes, ",") {
				m, ok := model.ParseMode(item)
				if !ok {
					return fmt.Errorf("unknown mode %q", item)
				}
				parsed = append(parsed, m)
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, m := range parsed {
				if m == model.ModeRAG {
					if err := a.loadStore(ctx); err != nil {
						return err
					}
					break
				}
			}
			batch := service.NewBatchClassifier(service.NewFileClassifier(a.classifyService()), concurrency)
			rep, err := batch.ClassifyAll(ctx, args[0], parsed, modelName, k)
			if err != nil {
				return err
			}
			return printJSON(rep)
		},
	}
	cmd.Flags().StringVar(&modes, "modes", "raw,rag", "comma separated modes")
	cmd.Flags().StringVar(&modelName, "model", "", "completion model (defaults to completion.default_model)")
	cmd.Flags().IntVar(&k, "k", 0, "documents to retrieve in rag mode")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "contracts classified in parallel")
	return cmd
}
