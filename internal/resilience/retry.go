// Package resilience retries transient failures of page and document
// fetches with jittered exponential backoff. LLM sends are never retried.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	// Attempts is the total number of tries. 1 disables retries.
	Attempts int
	// Base is the delay before the first retry.
	Base time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Jitter is the fraction of each delay randomised either way.
	Jitter float64
	// Name labels retry log lines.
	Name string
}

// DefaultPolicy tries three times starting at 300ms.
func DefaultPolicy(name string) Policy {
	return Policy{Attempts: 3, Base: 300 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.25, Name: name}
}

// TransientError marks a failure that may succeed on retry, e.g. a 429
// or 5xx reply.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// MarkTransient wraps err as transient when status is retryable and
// returns err unchanged otherwise.
func MarkTransient(err error, status int) error {
	if err == nil || !TransientStatus(status) {
		return err
	}
	return &TransientError{Err: err, StatusCode: status}
}

// TransientStatus reports whether an HTTP status is worth retrying.
func TransientStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err is a TransientError, a network timeout
// or a reset or refused connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// Retry calls fn until it succeeds, returns a non-transient error, the
// attempts run out, or ctx is done.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)

	var (
		val T
		err error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		val, err = fn(ctx)
		if err == nil || !IsTransient(err) || ctx.Err() != nil || attempt == attempts-1 {
			return val, err
		}

		delay := p.backoff(attempt)
		zap.L().Warn("resilience: retrying",
			zap.String("operation", p.Name),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return val, err
		case <-timer.C:
		}
	}
	return val, err
}

func (p Policy) backoff(attempt int) time.Duration {
	d := float64(p.Base) * math.Pow(2, float64(attempt))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(max(d, 0))
}
