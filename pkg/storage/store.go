// Package storage is the typed wrapper over the document store. It
// exposes the atomic operations every other component builds on:
// claim, terminal/deferred transitions, stale-lock reclamation,
// artifact upsert, primary-queue seeding, and the counter and recency
// queries the dashboard reads.
package storage

import (
	"context"
	"time"

	"github.com/tepantlatia/ingestor/pkg/domain"
)

// Queue names the two work queues the store maintains.
type Queue string

const (
	QueuePrimary   Queue = "primary"
	QueueSecondary Queue = "secondary"
)

// ErrNotFound is returned when a lookup by key finds nothing.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// Store defines the interface every other component depends on. It is
// implemented by BoltStore; tests may substitute an in-memory fake
// built on the same interface.
type Store interface {
	// ClaimNext atomically selects and claims one runnable entry from
	// queue. Returns (nil, nil) when nothing is runnable.
	ClaimNext(ctx context.Context, queue Queue) (*domain.QueueEntry, error)

	// MarkCompleted transitions key to completed.
	MarkCompleted(ctx context.Context, queue Queue, key string) error

	// MarkError transitions key to error with a bounded diagnostic.
	MarkError(ctx context.Context, queue Queue, key, message string) error

	// MarkDeferredOrUnavailable transitions key to deferred or
	// unavailable depending on the entry's age.
	MarkDeferredOrUnavailable(ctx context.Context, queue Queue, key, message string) error

	// Drain applies both an error diagnosis and a completion mark so
	// the item is not retried again.
	Drain(ctx context.Context, queue Queue, key, message string) error

	// ReapStaleLocks returns processing entries whose claimed_at is
	// older than staleWindow back to pending. Returns the count
	// reclaimed.
	ReapStaleLocks(ctx context.Context, queue Queue, staleWindow time.Duration) (int, error)

	// GetEntry returns the current state of a queue entry.
	GetEntry(ctx context.Context, queue Queue, key string) (*domain.QueueEntry, error)

	// PutSecondaryEntry inserts a secondary-queue entry carrying its
	// inline payload, if absent.
	PutSecondaryEntry(ctx context.Context, entry *domain.QueueEntry) error

	// UpsertArtifact idempotently writes an artifact by key.
	UpsertArtifact(ctx context.Context, queue Queue, artifact *domain.Artifact) error

	// GetArtifact looks up an artifact by key; returns ErrNotFound if
	// absent.
	GetArtifact(ctx context.Context, queue Queue, key string) (*domain.Artifact, error)

	// SeedPrimary bulk-upserts one pending entry per integer key across
	// blocks, batched, unordered, skipping the operation entirely if
	// the meta marker is already set.
	SeedPrimary(ctx context.Context, blocks []domain.Block, onBatch func(done, total int)) error

	// Counters returns the per-state counts for queue.
	Counters(ctx context.Context, queue Queue) (domain.Counters, error)

	// FindRecentArtifacts returns up to filter.Limit primary artifacts
	// matching filter, newest updated_at first.
	FindRecentArtifacts(ctx context.Context, filter domain.RecentFilter) ([]*domain.Artifact, error)

	// RetryErrors atomically transitions up to limit primary-queue
	// entries from error back to pending.
	RetryErrors(ctx context.Context, limit int) (int, error)

	// Close releases the underlying database handle.
	Close() error
}
