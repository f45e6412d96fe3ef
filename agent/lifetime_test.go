package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-platform/thorium/model"
)

func TestLifetimeFairShareNoLifetimeCapsAtSixtySeconds(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{}, model.PoolFairShare)
	start := time.Now()
	assert.False(t, b.Exhausted(start, start.Add(59*time.Second)))
	assert.True(t, b.Exhausted(start, start.Add(60*time.Second)))
}

func TestLifetimeFairShareJobsCapsAtOneJobRegardlessOfAmount(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{Kind: model.LifetimeJobs, Amount: 10}, model.PoolFairShare)
	start := time.Now()
	assert.False(t, b.Exhausted(start, start))
	b.RecordJob()
	assert.True(t, b.Exhausted(start, start))
}

func TestLifetimeFairShareTimeClampsToSixtySeconds(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{Kind: model.LifetimeTime, Amount: 300}, model.PoolFairShare)
	start := time.Now()
	assert.False(t, b.Exhausted(start, start.Add(59*time.Second)))
	assert.True(t, b.Exhausted(start, start.Add(61*time.Second)))
}

func TestLifetimeFairShareTimeUnderCapIsHonoured(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{Kind: model.LifetimeTime, Amount: 10}, model.PoolFairShare)
	start := time.Now()
	assert.False(t, b.Exhausted(start, start.Add(9*time.Second)))
	assert.True(t, b.Exhausted(start, start.Add(10*time.Second)))
}

func TestLifetimeDeadlinePoolHonoursDeclaredJobs(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{Kind: model.LifetimeJobs, Amount: 3}, model.PoolDeadline)
	start := time.Now()
	for i := 0; i < 2; i++ {
		assert.False(t, b.Exhausted(start, start))
		b.RecordJob()
	}
	assert.False(t, b.Exhausted(start, start))
	b.RecordJob()
	assert.True(t, b.Exhausted(start, start))
}

func TestLifetimeDeadlinePoolNoLifetimeIsInfinite(t *testing.T) {
	b := newLifetimeBudget(model.Lifetime{}, model.PoolDeadline)
	start := time.Now()
	for i := 0; i < 1000; i++ {
		b.RecordJob()
	}
	assert.False(t, b.Exhausted(start, start.Add(24*time.Hour)))
}
