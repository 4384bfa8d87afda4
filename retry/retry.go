// Package retry runs operations with capped exponential backoff.
//
// Errors are retried unless they are marked with Permanent or the policy's
// Classify function rejects them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	// Values below 1 mean a single try.
	Attempts int

	// BaseDelay is the wait before the second try.
	BaseDelay time.Duration

	// MaxDelay caps the wait between tries.
	MaxDelay time.Duration

	// Factor multiplies the delay after every failed try.
	Factor float64

	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64

	// Classify reports whether err may be retried. Nil retries everything
	// not marked Permanent.
	Classify func(err error) bool
}

// DefaultPolicy returns three attempts starting at 100ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Factor:    2,
		Jitter:    0.1,
	}
}

// None returns a policy that tries exactly once.
func None() Policy {
	return Policy{Attempts: 1}
}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = 2
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	return p
}

// delay returns the wait after the given number of failed tries.
func (p Policy) delay(failures int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 1; i < failures; i++ {
		d *= p.Factor
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

func (p Policy) retryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if p.Classify != nil {
		return p.Classify(err)
	}
	return true
}

// Error reports an operation that did not succeed.
type Error struct {
	Attempts int   // tries made
	Last     error // error from the final try
	Reason   error // ErrExhausted, ErrPermanent or the context error
}

// Sentinel reasons carried by Error.
var (
	ErrExhausted = errors.New("retry: attempts exhausted")
	ErrPermanent = errors.New("retry: permanent failure")
)

func (e *Error) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Reason, e.Attempts, e.Last)
}

// Unwrap exposes both the last error and the reason to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.Last, e.Reason}
}

// Do calls fn until it succeeds, the policy gives up, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.normalized()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !p.retryable(err) {
			return &Error{Attempts: attempt, Last: unwrapPermanent(err), Reason: ErrPermanent}
		}
		if attempt >= p.Attempts {
			return &Error{Attempts: attempt, Last: err, Reason: ErrExhausted}
		}

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Attempts: attempt, Last: err, Reason: ctx.Err()}
		case <-timer.C:
		}
	}
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			result = v
		}
		return err
	})
	return result, err
}

// Permanent marks err so Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func unwrapPermanent(err error) error {
	var perm *permanentError
	if errors.As(err, &perm) && perm == err {
		return perm.err
	}
	return err
}
