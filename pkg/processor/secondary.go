package processor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/embedclient"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/queue"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

// Secondary implements the local/in-queue-payload processor: same
// protocol as Primary minus the HTTP fetch, always embeds, and writes
// to a distinct artifact collection.
type Secondary struct {
	Store    storage.Store
	Embedder *embedclient.Client
	logger   zerolog.Logger
}

// NewSecondary builds a Secondary processor.
func NewSecondary(store storage.Store, embedder *embedclient.Client) *Secondary {
	return &Secondary{
		Store:    store,
		Embedder: embedder,
		logger:   log.WithComponent("processor.secondary"),
	}
}

// Process implements scheduler.Processor.
func (s *Secondary) Process(ctx context.Context, entry *domain.QueueEntry) (ok bool, transient bool, err error) {
	key := entry.Key

	if existing, err := s.Store.GetArtifact(ctx, storage.QueueSecondary, key); err == nil && existing.Processed {
		res, err := queue.Complete(ctx, s.Store, storage.QueueSecondary, key)
		return res.OK, res.Transient, err
	} else if err != nil && err != storage.ErrNotFound {
		return false, false, err
	}

	if strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Text) == "" {
		res, err := queue.Drain(ctx, s.Store, storage.QueueSecondary, key, "payload-missing: title or text blank")
		return res.OK, res.Transient, err
	}

	epoch := "N/A"
	if len(entry.Facets) > 0 {
		epoch = strings.Join(entry.Facets, ", ")
	}

	prompt := SecondaryPrompt(entry, epoch, 0)
	vector, embedded := s.Embedder.Embed(ctx, prompt)
	if !embedded {
		res, err := queue.Fail(ctx, s.Store, storage.QueueSecondary, key, "embed-failed")
		return res.OK, res.Transient, err
	}

	artifact := &domain.Artifact{
		Key:        key,
		Title:      entry.Title,
		Body:       entry.Text,
		Subject:    epoch,
		Vector:     vector,
		Vectorized: true,
		Processed:  true,
	}
	if err := s.Store.UpsertArtifact(ctx, storage.QueueSecondary, artifact); err != nil {
		return false, false, err
	}

	res, err := queue.Complete(ctx, s.Store, storage.QueueSecondary, key)
	return res.OK, res.Transient, err
}
