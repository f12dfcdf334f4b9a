package wal

import "time"

// Policy is the durability scheduler embedded in the WAL. All three
// variants (Sync/Batch/Adaptive) share this one interface, modeled as a
// small capability interface rather than a class hierarchy.
type Policy interface {
	// OnAppend is called after record index idx (0-based, monotonically
	// increasing since the WAL was opened or last truncated) has been written to the
	// underlying file, and reports whether a sync must happen now.
	OnAppend(idx uint64, now time.Time) bool
	// OnSynced notifies the policy that a sync just completed, so it can
	// reset its internal bookkeeping (last-sync index/time).
	OnSynced(now time.Time)
	// IdleDeadline returns the time by which a sync must happen even
	// absent a new append, and whether the policy defines one at all.
	IdleDeadline(now time.Time) (deadline time.Time, ok bool)
}

// idleResetter is implemented by policies whose idle timeout should also
// reset internal tuning state (currently only adaptivePolicy).
type idleResetter interface {
	returnToMinOnIdle()
}

func newPolicy(o options) Policy {
	switch o.policyKind {
	case Batch:
		return newBatchPolicy(o.batchN, durationMs(o.batchIntervalMs))
	case Adaptive:
		return newAdaptivePolicy(o.adaptiveMin, o.adaptiveMax, durationMs(o.adaptiveIdleMs))
	default:
		return syncPolicy{}
	}
}

// syncPolicy forces a sync after every append: zero-record worst-case
// loss on crash.
type syncPolicy struct{}

func (syncPolicy) OnAppend(uint64, time.Time) bool                 { return true }
func (syncPolicy) OnSynced(time.Time)                              {}
func (syncPolicy) IdleDeadline(time.Time) (time.Time, bool)        { return time.Time{}, false }

// batchPolicy fires when N records have accumulated since the last sync,
// or when interval has elapsed since the last sync, whichever comes
// first.
type batchPolicy struct {
	n            int
	interval     time.Duration
	sinceSync    int
	lastSyncedAt time.Time
}

func newBatchPolicy(n int, interval time.Duration) *batchPolicy {
	return &batchPolicy{n: max(n, 1), interval: interval, lastSyncedAt: time.Now()}
}

func (p *batchPolicy) OnAppend(_ uint64, now time.Time) bool {
	p.sinceSync++
	if p.sinceSync >= p.n {
		return true
	}
	if p.interval > 0 && now.Sub(p.lastSyncedAt) >= p.interval {
		return true
	}
	return false
}

func (p *batchPolicy) OnSynced(now time.Time) {
	p.sinceSync = 0
	p.lastSyncedAt = now
}

func (p *batchPolicy) IdleDeadline(now time.Time) (time.Time, bool) {
	if p.interval <= 0 {
		return time.Time{}, false
	}
	return p.lastSyncedAt.Add(p.interval), true
}

// adaptivePolicy maintains a rolling estimate of append throughput and
// derives a batch size B between bMin and bMax: higher throughput widens
// B (fewer, larger syncs), lower throughput narrows it back toward bMin.
// The watermark/step shape is grounded on
// go-adaptive-rate-limiter/adaptive_limiter.go's tune(): below a low
// watermark shrink by adjustFactorPct, above a high watermark grow by
// adjustFactorPct, otherwise hold steady. An idle timeout independently
// caps loss during quiet periods and resets B to bMin.
type adaptivePolicy struct {
	bMin, bMax int
	idle       time.Duration

	b int

	sinceSync    int
	lastSyncedAt time.Time

	// throughput estimate: EWMA of appends/sec over ~100ms windows.
	windowStart  time.Time
	windowCount  int
	ewmaRate     float64
}

const (
	adaptiveWindow         = 100 * time.Millisecond
	adaptiveLowWatermark   = 0.5 // appends/sec relative to current B's implied rate
	adaptiveHighWatermark  = 0.8
	adaptiveAdjustFactorPc = 20
	ewmaAlpha              = 0.3
)

func newAdaptivePolicy(bMin, bMax int, idle time.Duration) *adaptivePolicy {
	bMin = max(bMin, 1)
	bMax = max(bMax, bMin)
	now := time.Now()
	return &adaptivePolicy{
		bMin: bMin, bMax: bMax, idle: idle,
		b:            bMin,
		lastSyncedAt: now,
		windowStart:  now,
	}
}

func (p *adaptivePolicy) OnAppend(_ uint64, now time.Time) bool {
	p.sinceSync++
	p.observe(now)

	if p.sinceSync >= p.b {
		return true
	}
	if p.idle > 0 && now.Sub(p.lastSyncedAt) >= p.idle {
		p.returnToMinOnIdle()
		return true
	}
	return false
}

// observe folds the current window into the EWMA rate estimate once the
// window has elapsed, and re-tunes B from the new estimate.
func (p *adaptivePolicy) observe(now time.Time) {
	p.windowCount++
	elapsed := now.Sub(p.windowStart)
	if elapsed < adaptiveWindow {
		return
	}

	instantRate := float64(p.windowCount) / elapsed.Seconds()
	if p.ewmaRate == 0 {
		p.ewmaRate = instantRate
	} else {
		p.ewmaRate = ewmaAlpha*instantRate + (1-ewmaAlpha)*p.ewmaRate
	}
	p.windowStart = now
	p.windowCount = 0

	p.retune()
}

func (p *adaptivePolicy) retune() {
	// The rate a batch size B can "keep up with" without forcing more
	// than one sync per window is B/windowSeconds. Compare the observed
	// rate against that to decide whether B should grow or shrink.
	keepUpRate := float64(p.b) / adaptiveWindow.Seconds()
	if keepUpRate <= 0 {
		keepUpRate = 1
	}
	load := p.ewmaRate / keepUpRate

	switch {
	case load > adaptiveHighWatermark:
		grown := p.b * (100 + adaptiveAdjustFactorPc) / 100
		p.b = min(p.bMax, max(grown, p.b+1))
	case load < adaptiveLowWatermark:
		shrunk := p.b * 100 / (100 + adaptiveAdjustFactorPc)
		p.b = max(p.bMin, min(shrunk, p.b-1))
	}
}

func (p *adaptivePolicy) OnSynced(now time.Time) {
	p.sinceSync = 0
	p.lastSyncedAt = now
}

func (p *adaptivePolicy) IdleDeadline(now time.Time) (time.Time, bool) {
	if p.idle <= 0 {
		return time.Time{}, false
	}
	return p.lastSyncedAt.Add(p.idle), true
}

// returnToMinOnIdle resets B to bMin once sustained idleness has been
// observed; called alongside every idle-forced sync (from OnAppend and
// from WAL.MaybeIdleSync) so the next burst starts conservative.
func (p *adaptivePolicy) returnToMinOnIdle() {
	p.b = p.bMin
	p.ewmaRate = 0
}
