package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

func TestPrimaryBlocksCoversDocumentedRanges(t *testing.T) {
	blocks := PrimaryBlocks()
	require.NotEmpty(t, blocks)

	assert.Equal(t, domain.Block{Lo: 292564, Hi: 350000}, blocks[0])

	last := blocks[len(blocks)-1]
	assert.Equal(t, domain.Block{Lo: 2028000, Hi: 2031780}, last)

	covers := func(key int) bool {
		for _, b := range blocks {
			if b.Lo <= key && key < b.Hi {
				return true
			}
		}
		return false
	}

	// The block before [161000,206000) is [1550000,1600000), so the
	// (160000,161000) gap is checked as ids that no block covers.
	var sawGapBefore161000, sawGapBefore207000, sawGapBefore2028000 bool
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Lo == 161000 && !covers(160000) && !covers(160999) {
			sawGapBefore161000 = true
		}
		if blocks[i].Lo == 207000 && blocks[i-1].Hi == 206000 {
			sawGapBefore207000 = true
		}
		if blocks[i].Lo == 2028000 && blocks[i-1].Hi == 2023000 {
			sawGapBefore2028000 = true
		}
	}
	assert.True(t, sawGapBefore161000, "expected the documented gap before the 161000 block")
	assert.True(t, sawGapBefore207000, "expected the documented gap before the 207000 block")
	assert.True(t, sawGapBefore2028000, "expected the documented gap before the 2028000 block")

	for _, b := range blocks {
		assert.Less(t, b.Lo, b.Hi, "block %v must be non-empty", b)
	}
}

func TestSeedIsNoopOnceAlreadySeeded(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir(), "test", 0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	// Marks the queue seeded without inserting the full, multi-million
	// key range Seed would otherwise walk.
	require.NoError(t, store.SeedPrimary(ctx, nil, nil))

	require.NoError(t, Seed(ctx, store))

	counters, err := store.Counters(ctx, storage.QueuePrimary)
	require.NoError(t, err)
	assert.Equal(t, 0, counters.Total)
}
