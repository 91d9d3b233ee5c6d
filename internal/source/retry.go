package source

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/johndauphine/table-transfer/internal/logging"
)

// Retry bounds how often an idempotent read is re-attempted.
type Retry struct {
	Retries int           // attempts after the first
	Backoff time.Duration // first delay, doubled per retry
}

// do runs fn until it succeeds, fails with a non-transient error, the
// retries are spent or ctx is cancelled.
func (r Retry) do(ctx context.Context, label string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 {
			backoff := r.Backoff * time.Duration(1<<(attempt-1))
			logging.Warn("Retry %d/%d for %s after %v (error: %v)", attempt, r.Retries, label, backoff, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err = fn(ctx)
		if err == nil || ctx.Err() != nil || !IsTransient(err) {
			return err
		}
	}
	return err
}

var transientMarkers = []string{
	"ora-03113", // end-of-file on communication channel
	"ora-03114", // not connected to oracle
	"ora-12170", // connect timeout
	"ora-12541", // no listener
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"connection refused",
	"server closed",
	"too many connections",
	"deadlock",
}

// IsTransient reports whether err looks like a network or session hiccup
// rather than a problem with the statement itself.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
