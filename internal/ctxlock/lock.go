// Package ctxlock provides a context-aware admission gate used by the
// engine to serialize its single writer path, to let a caller's context
// deadline abort a wait instead of blocking forever, and to reject
// admission outright when the guarded state is not fit to enter.
package ctxlock

import (
	"context"
	"fmt"
)

// Lock is a single-slot mutex acquired and released with a context. If
// admit is non-nil, AcquireCtx consults it immediately after winning the
// slot: a non-nil return releases the slot again and is surfaced to the
// caller instead of granting admission. This lets a guarded resource
// (here, the engine) reject entry atomically with acquiring the gate,
// rather than requiring every caller to re-check state themselves after
// acquiring.
type Lock struct {
	ch    chan struct{}
	admit func() error
}

// New creates a Lock. admit may be nil, in which case AcquireCtx only ever
// enforces mutual exclusion.
func New(admit func() error) *Lock {
	return &Lock{ch: make(chan struct{}, 1), admit: admit}
}

// AcquireCtx blocks until the lock is free or ctx is done, then — if admit
// was supplied — checks it before returning control to the caller.
func (l *Lock) AcquireCtx(ctx context.Context) error {
	if l.ch == nil {
		return fmt.Errorf("ctxlock: not initialized")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case l.ch <- struct{}{}:
	}

	if l.admit != nil {
		if err := l.admit(); err != nil {
			<-l.ch
			return err
		}
	}
	return nil
}

// ReleaseCtx releases the lock. ctx is honored only in the pathological
// case where the release itself would block, which cannot happen for a
// lock that was correctly acquired first.
func (l *Lock) ReleaseCtx(ctx context.Context) error {
	if l.ch == nil {
		return fmt.Errorf("ctxlock: not initialized")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
		return nil
	}
}
