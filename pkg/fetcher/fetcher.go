// Package fetcher performs the single upstream GET the primary
// processor depends on. It carries no retry logic of its own; the
// retry policy in pkg/retry decides what to do with the result.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Fetcher performs one HTTP GET per call, with a configurable
// per-call timeout.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// New returns a Fetcher whose client timeout is set to timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Result is the outcome of one fetch: either a status code and body,
// or a transport-level error (no response was obtained at all).
type Result struct {
	Status int
	Body   []byte
}

// Fetch issues one GET to url. A non-nil error means the request
// never produced an HTTP response (DNS failure, connection refused,
// timeout); any response, including non-200 statuses, is returned as
// a Result with no error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{Status: resp.StatusCode, Body: body}, nil
}
