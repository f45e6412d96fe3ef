package scaler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thorium-platform/thorium/model"
)

// TestAllocatableBestFitScalesUpAcrossThreeRequests covers three Created
// jobs queued against one image, one healthy node with room for all
// three: each BestFit+Reserve pair should succeed and leave the node's
// free capacity exactly exhausted.
func TestAllocatableBestFitScalesUpAcrossThreeRequests(t *testing.T) {
	node := model.Resources{CPUMilli: 6000, MemoryMiB: 6144, WorkerSlots: 3}
	arena := NewAllocatable(map[string]model.Resources{"node-a": node})

	req := model.Resources{CPUMilli: 2000, MemoryMiB: 2048, WorkerSlots: 1}

	for i := 0; i < 3; i++ {
		n, ok := arena.BestFit(req)
		assert.True(t, ok, "spawn %d should find room", i)
		assert.Equal(t, "node-a", n)
		arena.Reserve(n, req)
	}

	remaining := *arena["node-a"]
	assert.Equal(t, model.Resources{}, remaining)

	_, ok := arena.BestFit(req)
	assert.False(t, ok, "a fourth request should find no room left")
}

// TestAllocatableExcludesZeroWorkerSlots covers a node with abundant
// CPU/memory but worker_slots == 0: it must never be selected, since it
// has no capacity to host an agent process.
func TestAllocatableExcludesZeroWorkerSlots(t *testing.T) {
	arena := NewAllocatable(map[string]model.Resources{
		"drained": {CPUMilli: 64000, MemoryMiB: 262144, WorkerSlots: 0},
		"tight":   {CPUMilli: 1000, MemoryMiB: 1024, WorkerSlots: 1},
	})

	req := model.Resources{CPUMilli: 500, MemoryMiB: 512, WorkerSlots: 1}
	node, ok := arena.BestFit(req)
	assert.True(t, ok)
	assert.Equal(t, "tight", node)
}

// TestAllocatableTieBreaksLexicographically covers equally-good
// candidates: they are ordered by stable node name rather than map
// iteration order.
func TestAllocatableTieBreaksLexicographically(t *testing.T) {
	same := model.Resources{CPUMilli: 4000, MemoryMiB: 4096, WorkerSlots: 1}
	arena := NewAllocatable(map[string]model.Resources{
		"zeta":  same,
		"alpha": same,
		"mu":    same,
	})

	req := model.Resources{CPUMilli: 1000, MemoryMiB: 1024, WorkerSlots: 1}
	node, ok := arena.BestFit(req)
	assert.True(t, ok)
	assert.Equal(t, "alpha", node)
}

func TestPoolEnoughAndCommit(t *testing.T) {
	p := Pool{Total: model.Resources{CPUMilli: 1000}}
	req := model.Resources{CPUMilli: 600}

	assert.True(t, p.Enough(req))
	p = p.Commit(req)
	assert.False(t, p.Enough(req))
	assert.Equal(t, int64(600), p.Utilized())
}

func TestNewPoolsUncappedUsesFreeCapacity(t *testing.T) {
	total := model.Resources{CPUMilli: 10000, MemoryMiB: 10000}
	reserved := model.Resources{CPUMilli: 1000, MemoryMiB: 1000}

	fairshare, deadline := NewPools(total, reserved, model.Resources{})

	assert.Equal(t, int64(9000), fairshare.Total.CPUMilli)
	assert.Equal(t, int64(9000), deadline.Total.CPUMilli)
}

func TestNewPoolsRespectsFairShareCap(t *testing.T) {
	total := model.Resources{CPUMilli: 10000, MemoryMiB: 10000}
	fsCap := model.Resources{CPUMilli: 2000, MemoryMiB: 50000}

	fairshare, deadline := NewPools(total, model.Resources{}, fsCap)

	assert.Equal(t, int64(2000), fairshare.Total.CPUMilli)
	assert.Equal(t, int64(10000), deadline.Total.CPUMilli, "deadline pool is never capped by fairshare_cap")
}

func TestDownScalableAtAppliesDampingFactor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := downScalableAt(now, 100*time.Second)
	assert.Equal(t, now.Add(325*time.Second), got)
}

func TestDownScalableAtDefaultsZeroEstimate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := downScalableAt(now, 0)
	assert.Equal(t, now.Add(time.Duration(float64(time.Second)*downScalableMultiple)), got)
}

func TestNewWorkerNameIsUniqueAndShapedForDedup(t *testing.T) {
	a := NewWorkerName("triage", "unpack")
	b := NewWorkerName("triage", "unpack")
	assert.NotEqual(t, a, b, "two calls must not collide, or double-spawn dedup breaks")
	assert.Contains(t, a, "triage-unpack-")
}

func TestBanSetsExcludesTaintedEntities(t *testing.T) {
	bans := NewBanSets()
	req := Requisition{User: "alice", Group: "malware-team", Stage: "unpack"}

	assert.False(t, bans.Excluded(req))

	bans.TaintUser("alice")
	assert.True(t, bans.Excluded(req))

	other := Requisition{User: "bob", Group: "malware-team", Stage: "unpack"}
	assert.False(t, bans.Excluded(other))

	bans.TaintImage("malware-team", "unpack")
	assert.True(t, bans.Excluded(other))
}
