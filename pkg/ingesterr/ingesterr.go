// Package ingesterr defines one sentinel error per kind of the error
// taxonomy queue entries are diagnosed against, plus a Wrap helper. The
// processors record diagnoses on queue entries as message strings; no
// component compares returned errors against these sentinels.
package ingesterr

import "github.com/go-faster/errors"

var (
	// ErrStoreUnavailable signals the backing store could not be reached.
	ErrStoreUnavailable = errors.New("store-unavailable")

	// ErrUpstreamAbsent signals the upstream item does not exist (404/410).
	ErrUpstreamAbsent = errors.New("upstream-absent")

	// ErrUpstreamTransient signals a retryable upstream condition exhausted
	// its attempts (429/5xx or transport failure).
	ErrUpstreamTransient = errors.New("upstream-transient")

	// ErrUpstreamTerminalOther signals a non-200, non-classified response.
	ErrUpstreamTerminalOther = errors.New("upstream-terminal-other")

	// ErrParseInvalid signals the upstream body could not be decoded.
	ErrParseInvalid = errors.New("parse-invalid")

	// ErrPayloadMissing signals a required field was blank.
	ErrPayloadMissing = errors.New("payload-missing")

	// ErrEmbedFailed signals the embedding client exhausted its attempts.
	ErrEmbedFailed = errors.New("embed-failed")

	// ErrInvariantViolated signals a programming invariant was broken
	// (e.g. a queue entry missing its natural key).
	ErrInvariantViolated = errors.New("invariant-violated")
)

// Wrap annotates err with msg while keeping it comparable with errors.Is
// against the sentinel it wraps.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}
