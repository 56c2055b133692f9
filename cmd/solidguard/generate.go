package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xxxsen/solidguard/internal/model"
)

func newGenerateCmd(load configLoader) *cobra.Command {
	var (
		attack     string
		contractID string
		modelName  string
		num        int
		outDir     string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate vulnerable contracts, one (--attack) or a balanced dataset (--num)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if attack == "" && num <= 0 {
				return fmt.Errorf("either --attack or --num is required")
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
			svc := a.generateService()
			if attack != "" {
				gen, err := svc.Generate(ctx, model.AttackType(attack), contractID, modelName)
				if err != nil {
					return err
				}
				return printJSON(gen)
			}
			if outDir == "" {
				outDir = cfg.Generate.OutputDir
			}
			items, err := svc.GenerateDataset(ctx, outDir, num, modelName)
			for _, item := range items {
				fmt.Printf("%s\t%s\n", item.AttackType, item.Dir)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&attack, "attack", "", "attack type to generate")
	cmd.Flags().StringVar(&contractID, "contract-id", "", "contract id for --attack")
	cmd.Flags().StringVar(&modelName, "model", "", "completion model (defaults to completion.default_model)")
	cmd.Flags().IntVar(&num, "num", 0, "dataset samples to generate")
	cmd.Flags().StringVar(&outDir, "out", "", "dataset directory (defaults to generate.output_dir)")
	return cmd
}
