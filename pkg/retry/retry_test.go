package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tepantlatia/ingestor/pkg/fetcher"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, Success, Classify(200))
	assert.Equal(t, Retryable, Classify(429))
	assert.Equal(t, Retryable, Classify(503))
	assert.Equal(t, TerminalAbsent, Classify(404))
	assert.Equal(t, TerminalAbsent, Classify(410))
	assert.Equal(t, TerminalOther, Classify(403))
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: time.Millisecond, JitterMax: time.Millisecond}
}

func TestFetchWithRetrySuccessOnFirstTry(t *testing.T) {
	calls := 0
	outcome := FetchWithRetry(context.Background(), fastPolicy(), func(ctx context.Context) (fetcher.Result, error) {
		calls++
		return fetcher.Result{Status: 200, Body: []byte("ok")}, nil
	})

	assert.Equal(t, 1, calls)
	assert.False(t, outcome.Exhausted)
	assert.Equal(t, Success, outcome.Classification)
}

func TestFetchWithRetryTerminalAbsentStopsImmediately(t *testing.T) {
	calls := 0
	outcome := FetchWithRetry(context.Background(), fastPolicy(), func(ctx context.Context) (fetcher.Result, error) {
		calls++
		return fetcher.Result{Status: 404}, nil
	})

	assert.Equal(t, 1, calls)
	assert.False(t, outcome.Exhausted)
	assert.Equal(t, TerminalAbsent, outcome.Classification)
}

func TestFetchWithRetryRetryableExhausted(t *testing.T) {
	calls := 0
	outcome := FetchWithRetry(context.Background(), fastPolicy(), func(ctx context.Context) (fetcher.Result, error) {
		calls++
		return fetcher.Result{Status: 503}, nil
	})

	assert.Equal(t, 3, calls)
	assert.True(t, outcome.Exhausted)
	assert.True(t, outcome.GotResponse)
	assert.Equal(t, Retryable, outcome.Classification)
}

func TestFetchWithRetryTransportExhausted(t *testing.T) {
	calls := 0
	outcome := FetchWithRetry(context.Background(), fastPolicy(), func(ctx context.Context) (fetcher.Result, error) {
		calls++
		return fetcher.Result{}, errors.New("connection refused")
	})

	assert.Equal(t, 3, calls)
	assert.True(t, outcome.Exhausted)
	assert.False(t, outcome.GotResponse)
}

func TestFetchWithRetryRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	outcome := FetchWithRetry(context.Background(), fastPolicy(), func(ctx context.Context) (fetcher.Result, error) {
		calls++
		if calls < 2 {
			return fetcher.Result{Status: 503}, nil
		}
		return fetcher.Result{Status: 200, Body: []byte("ok")}, nil
	})

	assert.Equal(t, 2, calls)
	assert.False(t, outcome.Exhausted)
	assert.Equal(t, Success, outcome.Classification)
}
