package wal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPolicyAlwaysSyncs(t *testing.T) {
	p := syncPolicy{}
	now := time.Now()
	assert.True(t, p.OnAppend(0, now))
	assert.True(t, p.OnAppend(1, now))
}

func TestBatchPolicyTimeBasedCap(t *testing.T) {
	p := newBatchPolicy(100, 10*time.Millisecond)
	now := time.Now()
	p.lastSyncedAt = now.Add(-20 * time.Millisecond)
	assert.True(t, p.OnAppend(0, now), "interval elapsed should force a sync even under N")
}

func TestAdaptivePolicyGrowsUnderSustainedLoad(t *testing.T) {
	p := newAdaptivePolicy(1, 64, 50*time.Millisecond)
	initial := p.b

	now := p.lastSyncedAt
	// Simulate a fast, sustained burst: many appends packed into
	// successive 100ms windows well above the keep-up rate for B=1.
	for i := 0; i < 2000; i++ {
		now = now.Add(50 * time.Microsecond)
		p.OnAppend(uint64(i), now)
	}

	assert.Greater(t, p.b, initial, "batch size should grow under sustained high throughput")
	assert.LessOrEqual(t, p.b, p.bMax)
}

func TestAdaptivePolicyReturnsToMinOnIdle(t *testing.T) {
	p := newAdaptivePolicy(2, 64, 50*time.Millisecond)
	p.b = 32
	p.returnToMinOnIdle()
	require.Equal(t, p.bMin, p.b)
}

func TestAdaptivePolicyRespectsBounds(t *testing.T) {
	p := newAdaptivePolicy(4, 8, time.Millisecond)
	p.b = 4
	// Force many retunes; b must never leave [bMin, bMax].
	for i := 0; i < 50; i++ {
		p.ewmaRate = 1e9
		p.retune()
		assert.GreaterOrEqual(t, p.b, p.bMin)
		assert.LessOrEqual(t, p.b, p.bMax)
	}
}
