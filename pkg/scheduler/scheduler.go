// Package scheduler implements the weighted round-robin dispatch loop,
// stale-lock reclamation, adaptive circuit breaker, and pacing that
// drive the two work queues. All of it lives on one long-lived Worker
// value rather than package-level globals.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tepantlatia/ingestor/pkg/domain"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/metrics"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

// Processor binds one queue's business logic into the dispatch loop.
// ok reports whether the item reached a terminal-for-now state
// (completed or properly drained); transient reports whether the
// failure should feed the primary queue's circuit breaker.
type Processor interface {
	Process(ctx context.Context, entry *domain.QueueEntry) (ok bool, transient bool, err error)
}

// Config holds the scheduler's tunable knobs.
type Config struct {
	WPrimary        int
	WSecondary      int
	NormalPace      time.Duration
	LockStaleWindow time.Duration
	MaxConsecErrors int
	GlobalPause     time.Duration
}

const (
	reapEveryIterations = 200
	emptyQueueSleep     = 1 * time.Second
	throughputWindow    = 20
	throughputMinSample = 10
)

// Worker owns the store handle, configuration, per-queue processors,
// the rolling throughput window and the consecutive-upstream-error
// breaker — the single long-lived value the design notes call for in
// place of process-wide globals.
type Worker struct {
	store      storage.Store
	cfg        Config
	processors map[storage.Queue]Processor
	runID      string
	logger     zerolog.Logger

	schedule []storage.Queue
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker

	recentDispatches []time.Time
}

// NewWorker builds a Worker with processors registered per queue. Each
// Worker is tagged with a random run ID so that logs from multiple
// worker processes pointed at the same store can be told apart after
// aggregation.
func NewWorker(store storage.Store, cfg Config, processors map[storage.Queue]Processor) *Worker {
	runID := uuid.New().String()
	w := &Worker{
		store:      store,
		cfg:        cfg,
		processors: processors,
		runID:      runID,
		logger:     log.WithComponent("scheduler").With().Str("run_id", runID).Logger(),
		limiter:    rate.NewLimiter(rate.Every(cfg.NormalPace), 1),
	}
	w.schedule = buildSchedule(cfg.WPrimary, cfg.WSecondary)
	w.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "primary-upstream",
		MaxRequests: 1,
		Timeout:     1 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxConsecErrors)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.onBreakerStateChange(from, to)
		},
	})
	return w
}

// RunID returns this Worker's random instance identifier.
func (w *Worker) RunID() string {
	return w.runID
}

func buildSchedule(wPrimary, wSecondary int) []storage.Queue {
	if wPrimary <= 0 {
		wPrimary = 1
	}
	if wSecondary <= 0 {
		wSecondary = 1
	}
	schedule := make([]storage.Queue, 0, wPrimary+wSecondary)
	for i := 0; i < wPrimary; i++ {
		schedule = append(schedule, storage.QueuePrimary)
	}
	for i := 0; i < wSecondary; i++ {
		schedule = append(schedule, storage.QueueSecondary)
	}
	return schedule
}

// onBreakerStateChange implements the adaptive circuit breaker: when
// the primary queue's consecutive-error count trips the breaker open,
// the whole loop (including the secondary queue, by single-loop
// design) sleeps for GlobalPause before the next attempt is allowed
// through. The breaker's own Timeout is set far shorter than
// GlobalPause on purpose — this sleep, not gobreaker's internal
// reopen timer, is what enforces the pause duration.
func (w *Worker) onBreakerStateChange(from, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	metrics.CircuitBreakerTripsTotal.Inc()
	w.logger.Warn().
		Dur("pause", w.cfg.GlobalPause).
		Msg("consecutive upstream errors exceeded threshold, pausing scheduler")
	time.Sleep(w.cfg.GlobalPause)
}

// Run executes the dispatch loop until ctx is canceled. Cancellation
// is checked between dispatches; an in-flight dispatch always
// completes before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().
		Int("w_primary", w.cfg.WPrimary).
		Int("w_secondary", w.cfg.WSecondary).
		Msg("scheduler starting")

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("scheduler stopping")
			return ctx.Err()
		default:
		}

		if i > 0 && i%reapEveryIterations == 0 {
			w.reapAll(ctx)
		}

		queue := w.schedule[i%len(w.schedule)]
		success, err := w.dispatchOne(ctx, queue)
		if err != nil {
			w.logger.Error().Err(err).Str("queue", string(queue)).Msg("dispatch failed")
		}
		if success {
			if err := w.Pace(ctx); err != nil {
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) reapAll(ctx context.Context) {
	for _, q := range []storage.Queue{storage.QueuePrimary, storage.QueueSecondary} {
		n, err := w.store.ReapStaleLocks(ctx, q, w.cfg.LockStaleWindow)
		if err != nil {
			w.logger.Error().Err(err).Str("queue", string(q)).Msg("stale lock reap failed")
			continue
		}
		if n > 0 {
			metrics.StaleLocksReclaimedTotal.WithLabelValues(string(q)).Add(float64(n))
			w.logger.Info().Str("queue", string(q)).Int("reclaimed", n).Msg("reclaimed stale locks")
		}
	}
}

// dispatchOne claims and processes one entry from queue. success
// reports whether a dispatch completed successfully and should count
// toward pacing and throughput.
func (w *Worker) dispatchOne(ctx context.Context, queue storage.Queue) (success bool, err error) {
	timer := metrics.NewTimer()
	entry, err := w.store.ClaimNext(ctx, queue)
	timer.ObserveDuration(metrics.ClaimDuration)
	if err != nil {
		return false, err
	}
	if entry == nil {
		time.Sleep(emptyQueueSleep)
		return false, nil
	}
	metrics.ClaimsTotal.WithLabelValues(string(queue)).Inc()

	processor, ok := w.processors[queue]
	if !ok {
		return false, nil
	}

	procTimer := metrics.NewTimer()
	var processOK, transient bool

	if queue == storage.QueuePrimary {
		_, execErr := w.breaker.Execute(func() (interface{}, error) {
			processOK, transient, err = processor.Process(ctx, entry)
			if transient {
				return nil, errTransient
			}
			return nil, nil
		})
		metrics.ConsecutiveUpstreamErrors.Set(float64(w.breaker.Counts().ConsecutiveFailures))
		if execErr == gobreaker.ErrOpenState {
			return false, nil
		}
	} else {
		processOK, transient, err = processor.Process(ctx, entry)
	}

	procTimer.ObserveDurationVec(metrics.ProcessingDuration, string(queue))

	outcome := "error"
	switch {
	case err != nil:
		outcome = "error"
	case processOK && !transient:
		outcome = "success"
		w.recordDispatch()
		success = true
	case transient:
		outcome = "transient"
	}
	metrics.ItemsProcessedTotal.WithLabelValues(string(queue), outcome).Inc()

	return success, err
}

var errTransient = &transientError{}

type transientError struct{}

func (*transientError) Error() string { return "upstream-transient" }

func (w *Worker) recordDispatch() {
	now := time.Now()
	w.recentDispatches = append(w.recentDispatches, now)
	if len(w.recentDispatches) > throughputWindow {
		w.recentDispatches = w.recentDispatches[len(w.recentDispatches)-throughputWindow:]
	}
	if len(w.recentDispatches) < throughputMinSample {
		return
	}
	span := now.Sub(w.recentDispatches[0]).Seconds()
	if span <= 0 {
		return
	}
	throughput := float64(len(w.recentDispatches)-1) / span
	metrics.ThroughputItemsPerSec.Set(throughput)
	w.logger.Debug().Float64("items_per_sec", throughput).Msg("throughput")
}

// Pace blocks until the next iteration is allowed to proceed, per the
// configured normal pacing rate.
func (w *Worker) Pace(ctx context.Context) error {
	return w.limiter.Wait(ctx)
}
