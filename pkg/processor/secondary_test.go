package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/embedclient"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

func putSecondary(t *testing.T, store storage.Store, entry *domain.QueueEntry) *domain.QueueEntry {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.PutSecondaryEntry(ctx, entry))
	claimed, err := store.ClaimNext(ctx, storage.QueueSecondary)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	return claimed
}

func TestSecondaryHappyPath(t *testing.T) {
	embed := newEmbedServer(t)
	store := newStore(t)
	ctx := context.Background()

	entry := putSecondary(t, store, &domain.QueueEntry{Key: "doc-1", Title: "A local thesis", Text: "body text", Facets: []string{"9a"}})

	p := NewSecondary(store, embedclient.New("k", "m", embed.URL))
	ok, transient, err := p.Process(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, transient)

	got, err := store.GetEntry(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, got.State)

	artifact, err := store.GetArtifact(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.True(t, artifact.Vectorized)
	assert.Equal(t, "9a", artifact.Subject)
}

func TestSecondaryDefaultsEpochWhenNoFacets(t *testing.T) {
	embed := newEmbedServer(t)
	store := newStore(t)
	ctx := context.Background()

	entry := putSecondary(t, store, &domain.QueueEntry{Key: "doc-2", Title: "Another thesis", Text: "more body text"})

	p := NewSecondary(store, embedclient.New("k", "m", embed.URL))
	ok, _, err := p.Process(ctx, entry)
	require.NoError(t, err)
	require.True(t, ok)

	artifact, err := store.GetArtifact(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, "N/A", artifact.Subject)
}

func TestSecondaryDrainsOnMissingText(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	entry := putSecondary(t, store, &domain.QueueEntry{Key: "doc-3", Title: "", Text: ""})

	p := NewSecondary(store, embedclient.New("k", "m", "http://unused"))
	ok, _, err := p.Process(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetEntry(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, got.State)
}

func TestSecondaryFailsInPlaceOnEmbedFailure(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	entry := putSecondary(t, store, &domain.QueueEntry{Key: "doc-4", Title: "T", Text: "body"})

	p := NewSecondary(store, embedclient.New("k", "m", "http://127.0.0.1:0"))
	ok, transient, err := p.Process(ctx, entry)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, transient)

	got, err := store.GetEntry(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, got.State)
}

// TestSecondaryDeduplicatesAlreadyProcessed covers the crash-recovery case:
// the artifact was written but the entry never got marked completed (e.g.
// the worker died in between), so a later claim finds it still pending.
func TestSecondaryDeduplicatesAlreadyProcessed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertArtifact(ctx, storage.QueueSecondary, &domain.Artifact{Key: "doc-5", Title: "T", Processed: true}))
	entry := putSecondary(t, store, &domain.QueueEntry{Key: "doc-5", Title: "T", Text: "body"})

	p := NewSecondary(store, embedclient.New("k", "m", "http://unused"))
	ok, transient, err := p.Process(ctx, entry)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, transient)

	got, err := store.GetEntry(ctx, storage.QueueSecondary, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, got.State)
}
