// Package scaler implements the per-scheduler-kind control loop (C8):
// given queued jobs and a fleet of heterogeneous nodes, it computes worker
// requisitions, enforces fair-share between users, binds them to nodes with
// enough free resources, and reconciles spawned state with one of several
// backend Schedulers (K8s, bare metal, Windows, KVM).
package scaler

import "github.com/thorium-platform/thorium/model"

// Pool is a fixed quota of cluster resources one of the two scheduling
// pools (FairShare, Deadline) draws from for one tick.
type Pool struct {
	Resources model.Resources // committed so far this tick
	Total     model.Resources // the pool's ceiling for this tick
}

// Enough reports whether committing req would still fit under Total.
func (p Pool) Enough(req model.Resources) bool {
	remaining := p.Total.Sub(p.Resources)
	return remaining.Enough(req)
}

// Commit reserves req against the pool, returning the updated Pool.
// Callers replace their Pool value with the result: Pool is a plain value
// type, not a pointer, so commits are explicit rather than hidden
// mutation.
func (p Pool) Commit(req model.Resources) Pool {
	p.Resources = p.Resources.Add(req)
	return p
}

// Utilized reports the CPU millicores committed so far (Resources.CPUMilli),
// for the scaler_pool_cpu_milli_used gauge.
func (p Pool) Utilized() int64 { return p.Resources.CPUMilli }

// NewPools builds the fairshare/deadline pool pair for one tick from the
// cluster's total free capacity and the configured caps:
// fairshare.total = min(total - reserved, fairShareCap).
func NewPools(clusterTotal, reserved, fairShareCap model.Resources) (fairshare, deadline Pool) {
	afterReserved := clusterTotal.Sub(reserved)
	fsTotal := afterReserved
	if fairShareCap != (model.Resources{}) {
		fsTotal = minResources(afterReserved, fairShareCap)
	}
	fairshare = Pool{Total: fsTotal}
	deadline = Pool{Total: afterReserved}
	return fairshare, deadline
}

func minResources(a, b model.Resources) model.Resources {
	return model.Resources{
		CPUMilli:     minInt64(a.CPUMilli, b.CPUMilli),
		MemoryMiB:    minInt64(a.MemoryMiB, b.MemoryMiB),
		EphemeralMiB: minInt64(a.EphemeralMiB, b.EphemeralMiB),
		WorkerSlots:  minInt64(a.WorkerSlots, b.WorkerSlots),
		NvidiaGPU:    minInt64(a.NvidiaGPU, b.NvidiaGPU),
		AMDGpu:       minInt64(a.AMDGpu, b.AMDGpu),
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
