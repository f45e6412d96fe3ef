package scaler

import (
	"sort"

	"github.com/thorium-platform/thorium/model"
)

// Allocatable is the per-node free-resource arena for one tick: node name ->
// a pointer to its remaining capacity. Workers and requisitions reference a
// node by name, never by pointer into this map, so releasing a reservation
// on RPC failure is a single map mutation.
type Allocatable map[string]*model.Resources

// NewAllocatable seeds the arena from each node's free capacity (already
// capacity minus reserved minus running Thorium pods' requests, computed by
// the caller in step 1 of the tick).
func NewAllocatable(free map[string]model.Resources) Allocatable {
	a := make(Allocatable, len(free))
	for node, r := range free {
		r := r
		a[node] = &r
	}
	return a
}

// BestFit picks a node with enough room for req, tie-broken by the highest
// ratio of request to remaining capacity on the dominant resource (the
// resource req is scarcest in, relative to each node's free capacity), and
// by stable lexicographic node name among equally-good candidates, for a
// deterministic order.
//
// A node with WorkerSlots <= 0 is excluded from consideration regardless of
// CPU/memory availability.
func (a Allocatable) BestFit(req model.Resources) (node string, ok bool) {
	candidates := make([]string, 0, len(a))
	for name, free := range a {
		if free.Enough(req) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri := dominantRatio(*a[candidates[i]], req)
		rj := dominantRatio(*a[candidates[j]], req)
		if ri != rj {
			return ri > rj // higher ratio = tighter fit = preferred
		}
		return candidates[i] < candidates[j] // stable lexicographic tie-break
	})
	return candidates[0], true
}

// Reserve applies req against node's remaining capacity in place, so later
// allocations in the same tick observe the reduced capacity.
func (a Allocatable) Reserve(node string, req model.Resources) {
	if r, ok := a[node]; ok {
		*r = r.Sub(req)
	}
}

// Release reverses a Reserve, used when a spawn RPC fails after the
// in-memory lease was already taken.
func (a Allocatable) Release(node string, req model.Resources) {
	if r, ok := a[node]; ok {
		*r = r.Add(req)
	}
}

// dominantRatio reports the highest ratio of req's demand to free's supply
// across the CPU, memory, ephemeral-storage and GPU dimensions (worker
// slots are not part of the ratio): the dimension req is scarcest in on
// this node. A higher ratio means req consumes a larger share of what the
// node has left, i.e. a tighter fit.
func dominantRatio(free, req model.Resources) float64 {
	ratios := []float64{
		ratio(req.CPUMilli, free.CPUMilli),
		ratio(req.MemoryMiB, free.MemoryMiB),
		ratio(req.EphemeralMiB, free.EphemeralMiB),
		ratio(req.NvidiaGPU, free.NvidiaGPU),
		ratio(req.AMDGpu, free.AMDGpu),
	}
	max := 0.0
	for _, r := range ratios {
		if r > max {
			max = r
		}
	}
	return max
}

func ratio(want, have int64) float64 {
	if want <= 0 {
		return 0
	}
	if have <= 0 {
		return 1 // maximally scarce: any request against zero free is a full commitment
	}
	return float64(want) / float64(have)
}
