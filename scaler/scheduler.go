package scaler

import (
	"context"

	"github.com/thorium-platform/thorium/model"
)

// ManagedWorkerPhase is the terminal/non-terminal state a backend-managed
// worker process reports, independent of the model.WorkerStatus the scaler
// itself tracks in MDS: a K8s Pod, bare-metal process, or KVM domain can
// reach a terminal phase the scaler hasn't yet observed.
type ManagedWorkerPhase string

const (
	ManagedRunning   ManagedWorkerPhase = "Running"
	ManagedSucceeded ManagedWorkerPhase = "Succeeded"
	ManagedFailed    ManagedWorkerPhase = "Failed"
	ManagedUnknown   ManagedWorkerPhase = "Unknown"
)

// Terminal reports whether phase needs no further scheduling attention
// beyond cleanup.
func (p ManagedWorkerPhase) Terminal() bool {
	return p == ManagedSucceeded || p == ManagedFailed
}

// ManagedWorker is one backend-visible worker process, as reported by a
// Scheduler's ListManaged: the set the clear-terminal pass diffs against
// MDS's worker registry.
type ManagedWorker struct {
	Name  string
	Node  string
	Phase ManagedWorkerPhase
}

// Scheduler is the per-backend launcher interface: K8s drives the
// Kubernetes API directly; BareMetal, Windows, and KVM delegate to the
// reactor running on the target node via the standard worker-update API
// rather than touching the node from the scaler process itself.
type Scheduler interface {
	// Spawn issues the launch order for s on node, for the given Image
	// definition.
	Spawn(ctx context.Context, node string, s Spawned, img model.Image) error

	// Delete issues the teardown order for the named worker.
	Delete(ctx context.Context, cluster, name string) error

	// ListManaged reports every worker this backend currently knows about
	// for cluster, for the clear-terminal pass.
	ListManaged(ctx context.Context, cluster string) ([]ManagedWorker, error)
}
