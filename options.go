package minikv

import "github.com/dnguyen-labs/minikv/internal/wal"

// PolicyKind selects the WAL durability policy.
type PolicyKind = wal.PolicyKind

const (
	SyncPolicy     = wal.Sync
	BatchPolicy    = wal.Batch
	AdaptivePolicy = wal.Adaptive
)

// OptionFn configures an Engine at Open time, following the functional
// options pattern used throughout this codebase.
type OptionFn func(*options)

type options struct {
	flushThresholdOps int
	walOpts           []wal.OptionFn
}

var defaultOptions = options{
	flushThresholdOps: 1000,
}

// WithFlushThresholdOps sets the MemTable operation count that triggers an
// automatic flush.
func WithFlushThresholdOps(n int) OptionFn {
	return func(o *options) { o.flushThresholdOps = n }
}

// WithWALPolicy selects the WAL's durability policy.
func WithWALPolicy(kind PolicyKind) OptionFn {
	return func(o *options) { o.walOpts = append(o.walOpts, wal.WithPolicy(kind)) }
}

// WithBatch configures the BATCH policy's sync-every-N-records and
// time-based sync cap.
func WithBatch(n, intervalMs int) OptionFn {
	return func(o *options) {
		o.walOpts = append(o.walOpts, wal.WithBatchN(n), wal.WithBatchIntervalMs(intervalMs))
	}
}

// WithAdaptive configures the ADAPTIVE policy's batch-size bounds and idle
// sync cap.
func WithAdaptive(min, max, idleMs int) OptionFn {
	return func(o *options) {
		o.walOpts = append(o.walOpts, wal.WithAdaptiveBounds(min, max), wal.WithAdaptiveIdleMs(idleMs))
	}
}
