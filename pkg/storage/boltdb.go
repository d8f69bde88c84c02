package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/tepantlatia/ingestor/pkg/domain"
)

var (
	bucketQueuePrimary     = []byte("queue_primary")
	bucketQueueSecondary   = []byte("queue_secondary")
	bucketArtifactPrimary  = []byte("artifacts_primary")
	bucketArtifactSecond   = []byte("artifacts_secondary")
	bucketMeta             = []byte("meta")

	metaKey = []byte("meta")

	seedBatchSize = 1000
)

const (
	defaultDeferInterval     = 60 * time.Minute
	defaultUnavailableBudget = 3 * 24 * time.Hour
)

// BoltStore implements Store using a single go.etcd.io/bbolt file, one
// JSON document per key per bucket, a bucket per queue and per artifact
// collection plus a small meta bucket for seeding and one-shot flags.
// The defer/unavailable aging windows live on the instance rather than
// as package state, so two stores in the same process (as in tests)
// never share or stomp each other's configuration.
type BoltStore struct {
	db *bolt.DB

	deferInterval     time.Duration
	unavailableBudget time.Duration
}

// NewBoltStore opens (creating if absent) a BoltDB-backed store at
// dataDir/<dbName>.db. A zero deferInterval or unavailableBudget falls
// back to the historical defaults (60m / 3d).
func NewBoltStore(dataDir, dbName string, deferInterval, unavailableBudget time.Duration) (*BoltStore, error) {
	if dbName == "" {
		dbName = "tepantlatia_db"
	}
	dbPath := filepath.Join(dataDir, dbName+".db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketQueuePrimary, bucketQueueSecondary, bucketArtifactPrimary, bucketArtifactSecond, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return errors.Wrapf(err, "create bucket %s", b)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if deferInterval <= 0 {
		deferInterval = defaultDeferInterval
	}
	if unavailableBudget <= 0 {
		unavailableBudget = defaultUnavailableBudget
	}

	return &BoltStore{db: db, deferInterval: deferInterval, unavailableBudget: unavailableBudget}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func queueBucket(queue Queue) []byte {
	if queue == QueuePrimary {
		return bucketQueuePrimary
	}
	return bucketQueueSecondary
}

func artifactBucket(queue Queue) []byte {
	if queue == QueuePrimary {
		return bucketArtifactPrimary
	}
	return bucketArtifactSecond
}

func getEntry(b *bolt.Bucket, key string) (*domain.QueueEntry, bool, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return nil, false, nil
	}
	var e domain.QueueEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func putEntry(b *bolt.Bucket, e *domain.QueueEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.Put([]byte(e.Key), data)
}

// ClaimNext scans, picks, and flips an entry to processing inside a
// single bolt write transaction: the scan, the pick, and the state
// flip all happen under one writer lock, which is what makes "no two
// concurrent calls return the same entry" hold.
func (s *BoltStore) ClaimNext(ctx context.Context, queue Queue) (*domain.QueueEntry, error) {
	var claimed *domain.QueueEntry
	now := time.Now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))

		var best *domain.QueueEntry
		err := b.ForEach(func(_, v []byte) error {
			var e domain.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if !runnable(&e, now) {
				return nil
			}
			if best == nil || ranksBefore(&e, best) {
				cp := e
				best = &cp
			}
			return nil
		})
		if err != nil {
			return err
		}
		if best == nil {
			return nil
		}

		best.State = domain.StateProcessing
		claimedAt := now
		best.ClaimedAt = &claimedAt
		best.NextRunAt = nil
		best.Attempts++
		if err := putEntry(b, best); err != nil {
			return err
		}
		claimed = best
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "claim next")
	}
	return claimed, nil
}

func runnable(e *domain.QueueEntry, now time.Time) bool {
	switch e.State {
	case domain.StatePending:
		return true
	case domain.StateDeferred:
		return e.NextRunAt == nil || !e.NextRunAt.After(now)
	default:
		return false
	}
}

// ranksBefore reports whether a should be claimed before b: earliest
// next_run_at first (absent treated as past), then earliest created_at.
func ranksBefore(a, b *domain.QueueEntry) bool {
	an, bn := nextRunSortKey(a), nextRunSortKey(b)
	if !an.Equal(bn) {
		return an.Before(bn)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func nextRunSortKey(e *domain.QueueEntry) time.Time {
	if e.NextRunAt == nil {
		return time.Time{}
	}
	return *e.NextRunAt
}

func (s *BoltStore) MarkCompleted(ctx context.Context, queue Queue, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		e, ok, err := getEntry(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrNotFound, "entry %s", key)
		}
		now := time.Now()
		e.State = domain.StateCompleted
		e.CompletedAt = &now
		e.ClaimedAt = nil
		return putEntry(b, e)
	})
}

func (s *BoltStore) MarkError(ctx context.Context, queue Queue, key, message string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		e, ok, err := getEntry(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrNotFound, "entry %s", key)
		}
		now := time.Now()
		e.State = domain.StateError
		e.ErroredAt = &now
		e.ClaimedAt = nil
		e.LastError = truncate(message, domain.MaxLastErrorLen)
		return putEntry(b, e)
	})
}

func (s *BoltStore) MarkDeferredOrUnavailable(ctx context.Context, queue Queue, key, message string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		e, ok, err := getEntry(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrNotFound, "entry %s", key)
		}
		now := time.Now()
		e.LastError = truncate(message, domain.MaxLastErrorLen)
		e.ClaimedAt = nil
		if now.Sub(e.CreatedAt) >= s.unavailableBudget {
			e.State = domain.StateUnavailable
			e.UnavailableAt = &now
			e.NextRunAt = nil
		} else {
			e.State = domain.StateDeferred
			next := now.Add(s.deferInterval)
			e.NextRunAt = &next
			e.DeferredAt = &now
		}
		return putEntry(b, e)
	})
}

func (s *BoltStore) Drain(ctx context.Context, queue Queue, key, message string) error {
	if err := s.MarkError(ctx, queue, key, message); err != nil {
		return err
	}
	return s.MarkCompleted(ctx, queue, key)
}

func (s *BoltStore) ReapStaleLocks(ctx context.Context, queue Queue, staleWindow time.Duration) (int, error) {
	reclaimed := 0
	now := time.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		var toReclaim []*domain.QueueEntry
		err := b.ForEach(func(_, v []byte) error {
			var e domain.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.State == domain.StateProcessing && e.ClaimedAt != nil && now.Sub(*e.ClaimedAt) >= staleWindow {
				cp := e
				toReclaim = append(toReclaim, &cp)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, e := range toReclaim {
			e.State = domain.StatePending
			e.ClaimedAt = nil
			if err := putEntry(b, e); err != nil {
				return err
			}
			reclaimed++
		}
		return nil
	})
	return reclaimed, err
}

func (s *BoltStore) GetEntry(ctx context.Context, queue Queue, key string) (*domain.QueueEntry, error) {
	var out *domain.QueueEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		e, ok, err := getEntry(b, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		out = e
		return nil
	})
	return out, err
}

func (s *BoltStore) PutSecondaryEntry(ctx context.Context, entry *domain.QueueEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueueSecondary)
		if b.Get([]byte(entry.Key)) != nil {
			return nil
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now()
		}
		if entry.State == "" {
			entry.State = domain.StatePending
		}
		return putEntry(b, entry)
	})
}

func (s *BoltStore) UpsertArtifact(ctx context.Context, queue Queue, artifact *domain.Artifact) error {
	artifact.UpdatedAt = time.Now()
	data, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(artifactBucket(queue))
		return b.Put([]byte(artifact.Key), data)
	})
}

func (s *BoltStore) GetArtifact(ctx context.Context, queue Queue, key string) (*domain.Artifact, error) {
	var out *domain.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(artifactBucket(queue))
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		var a domain.Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		out = &a
		return nil
	})
	return out, err
}

func (s *BoltStore) SeedPrimary(ctx context.Context, blocks []domain.Block, onBatch func(done, total int)) error {
	seeded, err := s.queueSeeded()
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}

	total := 0
	for _, blk := range blocks {
		total += blk.Hi - blk.Lo
	}

	done := 0
	now := time.Now()
	for _, blk := range blocks {
		keys := make([]int, 0, seedBatchSize)
		for i := blk.Lo; i < blk.Hi; i++ {
			keys = append(keys, i)
			if len(keys) == seedBatchSize {
				if err := s.seedBatch(keys, now); err != nil {
					return err
				}
				done += len(keys)
				if onBatch != nil {
					onBatch(done, total)
				}
				keys = keys[:0]
			}
		}
		if len(keys) > 0 {
			if err := s.seedBatch(keys, now); err != nil {
				return err
			}
			done += len(keys)
			if onBatch != nil {
				onBatch(done, total)
			}
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		data, err := json.Marshal(domain.Meta{QueueSeeded: true})
		if err != nil {
			return err
		}
		return b.Put(metaKey, data)
	})
}

func (s *BoltStore) seedBatch(keys []int, now time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueuePrimary)
		for _, k := range keys {
			keyStr := strconv.Itoa(k)
			if b.Get([]byte(keyStr)) != nil {
				continue
			}
			e := &domain.QueueEntry{
				Key:       keyStr,
				State:     domain.StatePending,
				CreatedAt: now,
			}
			if err := putEntry(b, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) queueSeeded() (bool, error) {
	var seeded bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		data := b.Get(metaKey)
		if data == nil {
			return nil
		}
		var m domain.Meta
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		seeded = m.QueueSeeded
		return nil
	})
	return seeded, err
}

func (s *BoltStore) Counters(ctx context.Context, queue Queue) (domain.Counters, error) {
	var c domain.Counters
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(queueBucket(queue))
		return b.ForEach(func(_, v []byte) error {
			var e domain.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			c.Total++
			switch e.State {
			case domain.StatePending:
				c.Pending++
			case domain.StateProcessing:
				c.Processing++
			case domain.StateCompleted:
				c.Completed++
			case domain.StateError:
				c.Error++
			case domain.StateDeferred:
				c.Deferred++
			case domain.StateUnavailable:
				c.Unavailable++
			}
			return nil
		})
	})
	return c, err
}

func (s *BoltStore) FindRecentArtifacts(ctx context.Context, filter domain.RecentFilter) ([]*domain.Artifact, error) {
	var all []*domain.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifactPrimary)
		return b.ForEach(func(_, v []byte) error {
			var a domain.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if filter.Epoch != "" && !strings.EqualFold(a.Epoch, filter.Epoch) {
				return nil
			}
			if filter.Subject != "" && !strings.Contains(strings.ToLower(a.Subject), strings.ToLower(filter.Subject)) {
				return nil
			}
			cp := a
			all = append(all, &cp)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	return all[:limit], nil
}

func (s *BoltStore) RetryErrors(ctx context.Context, limit int) (int, error) {
	count := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueuePrimary)
		var toRetry []*domain.QueueEntry
		err := b.ForEach(func(_, v []byte) error {
			if len(toRetry) >= limit {
				return nil
			}
			var e domain.QueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.State == domain.StateError {
				cp := e
				toRetry = append(toRetry, &cp)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, e := range toRetry {
			e.State = domain.StatePending
			if err := putEntry(b, e); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
