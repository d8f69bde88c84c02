package processor

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/embedclient"
	"github.com/tepantlatia/ingestor/pkg/fetcher"
	"github.com/tepantlatia/ingestor/pkg/ingesterr"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/queue"
	"github.com/tepantlatia/ingestor/pkg/retry"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

// VectorGate decides whether a given year should be embedded.
type VectorGate struct {
	RangeOnly     bool
	YearMin       int
	YearMax       int
	IfYearUnknown bool
}

// ShouldEmbed reports whether an item with the given year (0 = unknown)
// should be sent to the embedding service.
func (g VectorGate) ShouldEmbed(year int) bool {
	if !g.RangeOnly {
		return true
	}
	if year == 0 {
		return g.IfYearUnknown
	}
	return year >= g.YearMin && year <= g.YearMax
}

// Primary implements the remote-HTTP-source processor.
type Primary struct {
	Store      storage.Store
	Fetcher    *fetcher.Fetcher
	Embedder   *embedclient.Client
	URLBase    string
	RetryPolicy retry.Policy
	Gate       VectorGate
	logger     zerolog.Logger
}

// NewPrimary builds a Primary processor.
func NewPrimary(store storage.Store, f *fetcher.Fetcher, embedder *embedclient.Client, urlBase string, policy retry.Policy, gate VectorGate) *Primary {
	return &Primary{
		Store:       store,
		Fetcher:     f,
		Embedder:    embedder,
		URLBase:     urlBase,
		RetryPolicy: policy,
		Gate:        gate,
		logger:      log.WithComponent("processor.primary"),
	}
}

// Process implements scheduler.Processor.
func (p *Primary) Process(ctx context.Context, entry *domain.QueueEntry) (ok bool, transient bool, err error) {
	key := entry.Key
	logger := log.WithItem(string(storage.QueuePrimary), key)

	if existing, err := p.Store.GetArtifact(ctx, storage.QueuePrimary, key); err == nil && existing.Processed {
		res, err := queue.Complete(ctx, p.Store, storage.QueuePrimary, key)
		return res.OK, res.Transient, err
	} else if err != nil && err != storage.ErrNotFound {
		return false, false, err
	}

	url := p.URLBase + key
	outcome := retry.FetchWithRetry(ctx, p.RetryPolicy, func(ctx context.Context) (fetcher.Result, error) {
		return p.Fetcher.Fetch(ctx, url)
	})

	if !outcome.GotResponse {
		res, err := queue.DeferOrAbandon(ctx, p.Store, storage.QueuePrimary, key, "transport error: retries exhausted")
		return res.OK, res.Transient, err
	}

	switch outcome.Classification {
	case retry.TerminalAbsent:
		res, err := queue.Drain(ctx, p.Store, storage.QueuePrimary, key, "HTTP "+strconv.Itoa(outcome.Result.Status))
		return res.OK, res.Transient, err

	case retry.Retryable:
		res, err := queue.DeferOrAbandon(ctx, p.Store, storage.QueuePrimary, key, "HTTP "+strconv.Itoa(outcome.Result.Status)+": retries exhausted")
		return res.OK, res.Transient, err

	case retry.TerminalOther:
		res, err := queue.Drain(ctx, p.Store, storage.QueuePrimary, key, "HTTP "+strconv.Itoa(outcome.Result.Status))
		return res.OK, res.Transient, err
	}

	var rec domain.UpstreamRecord
	if err := json.Unmarshal(outcome.Result.Body, &rec); err != nil {
		logger.Warn().Err(err).Msg("upstream payload failed to parse")
		res, err := queue.Drain(ctx, p.Store, storage.QueuePrimary, key, ingesterr.Wrap(err, "parse-invalid").Error())
		return res.OK, res.Transient, err
	}

	if strings.TrimSpace(rec.Title) == "" || strings.TrimSpace(rec.Body) == "" {
		res, err := queue.Drain(ctx, p.Store, storage.QueuePrimary, key, "payload-missing: title or body blank")
		return res.OK, res.Transient, err
	}

	subject := domain.DecodeSubject(rec.Subject)

	var vector []float32
	vectorized := false
	if p.Gate.ShouldEmbed(rec.Year) {
		prompt := PrimaryPrompt(key, rec, subject)
		vec, embedded := p.Embedder.Embed(ctx, prompt)
		if !embedded {
			res, err := queue.Fail(ctx, p.Store, storage.QueuePrimary, key, "embed-failed")
			return res.OK, res.Transient, err
		}
		vector = vec
		vectorized = true
	}

	artifact := &domain.Artifact{
		Key:        key,
		Title:      rec.Title,
		Body:       rec.Body,
		Subject:    subject,
		Epoch:      rec.Epoch,
		Year:       rec.Year,
		Month:      rec.Month,
		TipoTesis:  rec.TipoTesis,
		Instancia:  rec.Instancia,
		Vector:     vector,
		Vectorized: vectorized,
		Processed:  true,
	}
	if err := p.Store.UpsertArtifact(ctx, storage.QueuePrimary, artifact); err != nil {
		return false, false, err
	}

	res, err := queue.Complete(ctx, p.Store, storage.QueuePrimary, key)
	return res.OK, res.Transient, err
}
