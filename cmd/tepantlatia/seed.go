package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tepantlatia/ingestor/pkg/config"
	"github.com/tepantlatia/ingestor/pkg/seeder"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Idempotently populate the primary queue from the declared ID ranges",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.StoreURI, cfg.DBName, cfg.DeferInterval(), cfg.UnavailableBudget())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := seeder.Seed(context.Background(), store); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	color.Green("seed complete")
	return nil
}
