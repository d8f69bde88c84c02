package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tepantlatia/ingestor/pkg/config"
	"github.com/tepantlatia/ingestor/pkg/embedclient"
	"github.com/tepantlatia/ingestor/pkg/fetcher"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/processor"
	"github.com/tepantlatia/ingestor/pkg/retry"
	"github.com/tepantlatia/ingestor/pkg/scheduler"
	"github.com/tepantlatia/ingestor/pkg/seeder"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduler loop against the primary and secondary queues",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.StoreURI, cfg.DBName, cfg.DeferInterval(), cfg.UnavailableBudget())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if cfg.SeedPrimaryQueue {
		ctx := context.Background()
		if err := seeder.Seed(ctx, store); err != nil {
			return fmt.Errorf("seed primary queue: %w", err)
		}
	}

	f := fetcher.New(cfg.PrimaryTimeoutSec)
	embedder := embedclient.New(cfg.EmbedAPIKey, cfg.EmbedModel, "")
	policy := retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		Base:        time.Duration(cfg.RetryBackoffSec * float64(time.Second)),
		JitterMax:   time.Duration(cfg.RetryJitterSec * float64(time.Second)),
	}
	gate := processor.VectorGate{
		RangeOnly:     cfg.VectorRangeOnly,
		YearMin:       cfg.YearMin,
		YearMax:       cfg.YearMax,
		IfYearUnknown: cfg.VectorIfYearUnknown,
	}

	primary := processor.NewPrimary(store, f, embedder, cfg.PrimaryURLBase, policy, gate)
	secondary := processor.NewSecondary(store, embedder)

	worker := scheduler.NewWorker(store, scheduler.Config{
		WPrimary:        cfg.WPrimary,
		WSecondary:      cfg.WSecondary,
		NormalPace:      cfg.NormalPace(),
		LockStaleWindow: cfg.LockStaleWindow(),
		MaxConsecErrors: cfg.MaxConsecErrors,
		GlobalPause:     cfg.GlobalPause(),
	}, map[storage.Queue]scheduler.Processor{
		storage.QueuePrimary:   primary,
		storage.QueueSecondary: secondary,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		color.Yellow("\nshutting down, letting the in-flight dispatch finish...")
		cancel()
	}()

	log.WithComponent("worker").Info().Str("run_id", worker.RunID()).Msg("worker starting")
	color.Green("tepantlatia worker running (run %s). Press Ctrl+C to stop.", worker.RunID())

	err = worker.Run(ctx)
	if err != nil && err != context.Canceled {
		return err
	}
	color.Green("worker stopped cleanly")
	return nil
}
