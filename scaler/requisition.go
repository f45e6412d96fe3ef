package scaler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/thorium-platform/thorium/model"
)

// Requisition is the scheduling unit: the (user, group, pipeline, stage)
// tuple a queue depth or deadline is measured against.
type Requisition struct {
	User     string
	Group    string
	Pipeline string
	Stage    string
}

// Spawned is one worker the tick decided to create (or that already
// exists and is tracked for scale-down).
type Spawned struct {
	Req          Requisition
	Cluster      string
	Node         string
	Name         string
	Resources    model.Resources
	Pool         model.Pool
	Spawn        bool // true: new spawn decision this tick; false: pre-existing
	ScaledDown   bool
	DownScalable time.Time
	Deadline     time.Time // zero for fair-share allocations
}

// downScalableMultiple is the runtime damping factor, chosen so a worker
// outlives roughly three expected executions before it becomes
// scale-down eligible.
const downScalableMultiple = 3.25

// NewWorkerName generates a scaler-assigned worker name, deduplicated by
// construction: `{pipeline}-{stage}-{random8}`. Repeated spawn requests
// for the same decision collapse onto the same name.
func NewWorkerName(pipeline, stage string) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 8)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return fmt.Sprintf("%s-%s-%s", pipeline, stage, string(b))
}

// downScalableAt computes the earliest time a freshly spawned worker may
// be marked scale-down-eligible, damping flapping.
func downScalableAt(now time.Time, runtimeEstimate time.Duration) time.Time {
	if runtimeEstimate <= 0 {
		runtimeEstimate = time.Second
	}
	return now.Add(time.Duration(float64(runtimeEstimate) * downScalableMultiple))
}
