// Package retry implements an exponential-backoff-with-jitter policy
// and HTTP status classification for the primary fetch loop, on top of
// github.com/cenkalti/backoff/v5.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tepantlatia/ingestor/pkg/fetcher"
)

// Classification is the outcome of inspecting an HTTP status code.
type Classification int

const (
	Success Classification = iota
	Retryable
	TerminalAbsent
	TerminalOther
)

// Classify buckets an HTTP status into a retry decision.
func Classify(status int) Classification {
	switch status {
	case 200:
		return Success
	case 429, 500, 502, 503, 504:
		return Retryable
	case 404, 410:
		return TerminalAbsent
	default:
		return TerminalOther
	}
}

// Policy holds the backoff parameters for the primary fetch loop.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	JitterMax   time.Duration
}

// DefaultPolicy returns the standard primary-fetch retry defaults: 3
// attempts, 1s base, 600ms jitter ceiling.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        1 * time.Second,
		JitterMax:   600 * time.Millisecond,
	}
}

// jitteredBackoff implements backoff.BackOff with full-width additive
// jitter (base * 2^i + uniform(0, jitterMax)) rather than cenkalti's
// default multiplicative randomization.
type jitteredBackoff struct {
	base      time.Duration
	jitterMax time.Duration
	attempt   int
}

func (j *jitteredBackoff) NextBackOff() time.Duration {
	d := j.base << j.attempt // base * 2^attempt
	if j.jitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(j.jitterMax) + 1))
	}
	j.attempt++
	return d
}

func (j *jitteredBackoff) Reset() {
	j.attempt = 0
}

var errRetryable = errors.New("retryable upstream response")

// Outcome is the terminal result of running the fetch-and-classify
// loop to completion (either a decision was reached or attempts were
// exhausted on a retryable/transport condition).
type Outcome struct {
	Result         fetcher.Result
	Classification Classification
	GotResponse    bool // false means every attempt failed at the transport level
	Exhausted      bool // retryable or transport error ran out of attempts
}

// FetchWithRetry runs fetch up to policy.MaxAttempts times, retrying on
// transport errors and on Retryable-classified responses, stopping
// immediately on Success, TerminalAbsent, or TerminalOther.
func FetchWithRetry(ctx context.Context, policy Policy, fetch func(ctx context.Context) (fetcher.Result, error)) Outcome {
	var out Outcome

	operation := func() (fetcher.Result, error) {
		res, err := fetch(ctx)
		if err != nil {
			return fetcher.Result{}, err
		}

		class := Classify(res.Status)
		out.Result = res
		out.Classification = class
		out.GotResponse = true

		if class == Retryable {
			return res, errRetryable
		}
		return res, nil
	}

	b := &jitteredBackoff{base: policy.Base, jitterMax: policy.JitterMax}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxInt(policy.MaxAttempts, 1))),
	)
	if err != nil {
		out.Exhausted = true
	}

	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
