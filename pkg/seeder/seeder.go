// Package seeder performs the one-shot, idempotent population of the
// primary queue from the hand-curated upstream ID ranges.
package seeder

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/metrics"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

// PrimaryBlocks returns the exact, half-open seed ranges. The later
// blocks intentionally cover older records last, and the gaps between
// blocks ((160000,161000), (206000,207000), (2023000,2028000)) are
// intentional — do not de-duplicate or merge adjacent blocks.
func PrimaryBlocks() []domain.Block {
	blocks := []domain.Block{
		{Lo: 292564, Hi: 350000},
	}
	for lo := 350000; lo < 1600000; lo += 50000 {
		blocks = append(blocks, domain.Block{Lo: lo, Hi: lo + 50000})
	}
	blocks = append(blocks,
		domain.Block{Lo: 161000, Hi: 206000},
		domain.Block{Lo: 207000, Hi: 2023000},
		domain.Block{Lo: 2028000, Hi: 2031780},
	)
	return blocks
}

// Seed runs seed_primary against store, reporting batch progress on a
// terminal progress bar. It is a no-op if the queue was already
// seeded (checked inside Store.SeedPrimary via the meta marker).
func Seed(ctx context.Context, store storage.Store) error {
	logger := log.WithComponent("seeder")
	blocks := PrimaryBlocks()

	total := 0
	for _, b := range blocks {
		total += b.Hi - b.Lo
	}

	bar := progressbar.Default(int64(total), "seeding primary queue")

	lastDone := 0
	err := store.SeedPrimary(ctx, blocks, func(done, _ int) {
		delta := done - lastDone
		_ = bar.Add(delta)
		metrics.SeedUpsertsTotal.Add(float64(delta))
		lastDone = done
	})
	if err != nil {
		return err
	}

	_ = bar.Finish()
	logger.Info().Int("total_keys", total).Int("blocks", len(blocks)).Msg("primary queue seeded")
	fmt.Println()
	return nil
}
