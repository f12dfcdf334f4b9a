package wal

import "time"

// PolicyKind selects which durability policy the WAL runs.
type PolicyKind byte

const (
	Sync PolicyKind = iota
	Batch
	Adaptive
)

// OptionFn configures a WAL at construction time, in the functional-options
// style go-wal/options.go and go-cask/options.go use throughout the pack.
type OptionFn func(*options)

type options struct {
	policyKind PolicyKind

	// Batch policy knobs.
	batchN          int
	batchIntervalMs int

	// Adaptive policy knobs.
	adaptiveMin    int
	adaptiveMax    int
	adaptiveIdleMs int
}

var defaultOptions = options{
	policyKind:      Sync,
	batchN:          10,
	batchIntervalMs: 5,
	adaptiveMin:     1,
	adaptiveMax:     256,
	adaptiveIdleMs:  50,
}

func WithPolicy(kind PolicyKind) OptionFn {
	return func(o *options) { o.policyKind = kind }
}

// WithBatchN sets N for the BATCH policy: sync every N appends.
func WithBatchN(n int) OptionFn {
	return func(o *options) { o.batchN = n }
}

// WithBatchIntervalMs sets the time-based sync cap for the BATCH policy.
func WithBatchIntervalMs(ms int) OptionFn {
	return func(o *options) { o.batchIntervalMs = ms }
}

// WithAdaptiveBounds sets B_min/B_max for the ADAPTIVE policy.
func WithAdaptiveBounds(min, max int) OptionFn {
	return func(o *options) { o.adaptiveMin, o.adaptiveMax = min, max }
}

// WithAdaptiveIdleMs sets the idle-driven sync cap for the ADAPTIVE policy.
func WithAdaptiveIdleMs(ms int) OptionFn {
	return func(o *options) { o.adaptiveIdleMs = ms }
}

func durationMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
