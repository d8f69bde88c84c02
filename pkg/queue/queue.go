// Package queue implements the queue entry lifecycle's state-machine
// transitions on top of the atomic primitives in pkg/storage,
// translating a processor's outcome into the correct store call.
package queue

import (
	"context"

	"github.com/tepantlatia/ingestor/pkg/storage"
)

// Result is returned to the scheduler after applying a transition.
type Result struct {
	OK        bool
	Transient bool
}

// Complete applies the success transition: processing -> completed.
func Complete(ctx context.Context, store storage.Store, q storage.Queue, key string) (Result, error) {
	if err := store.MarkCompleted(ctx, q, key); err != nil {
		return Result{}, err
	}
	return Result{OK: true}, nil
}

// Drain applies both the error diagnosis and the completion mark, so
// the item is counted as attempted and diagnosed but never retried.
func Drain(ctx context.Context, store storage.Store, q storage.Queue, key, message string) (Result, error) {
	if err := store.Drain(ctx, q, key, message); err != nil {
		return Result{}, err
	}
	return Result{OK: true}, nil
}

// DeferOrAbandon applies the transient-failure transition: depending
// on the entry's age, it lands in deferred (reclaimable automatically)
// or unavailable (terminal).
func DeferOrAbandon(ctx context.Context, store storage.Store, q storage.Queue, key, message string) (Result, error) {
	if err := store.MarkDeferredOrUnavailable(ctx, q, key, message); err != nil {
		return Result{}, err
	}
	return Result{OK: false, Transient: true}, nil
}

// Fail leaves the entry in error for operator replay (e.g. an
// embedding failure or an invariant violation), without draining it.
func Fail(ctx context.Context, store storage.Store, q storage.Queue, key, message string) (Result, error) {
	if err := store.MarkError(ctx, q, key, message); err != nil {
		return Result{}, err
	}
	return Result{OK: false, Transient: false}, nil
}
