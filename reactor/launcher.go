package reactor

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/model"
)

// LaunchOutcome is the backend-agnostic result of one Launch call. Backend
// packages (kvm, baremetal, windows) report their own richer result types
// internally and adapt them down to this shape for the reactor's tick loop,
// the same staged-result-without-Go-error contract kvm/domain.go's
// LaunchResult established: a failed launch is reported through
// ErrorMessage, not a returned error, so one bad worker never aborts the
// rest of the tick.
type LaunchOutcome struct {
	Success      bool
	WorkerName   string
	ErrorMessage string
	Stage        string
	CreatedAt    time.Time
}

// TerminateOutcome is the backend-agnostic result of one Terminate call.
type TerminateOutcome struct {
	Success      bool
	WorkerName   string
	ErrorMessage string
}

// ObservedWorker is one backend-reported running/stopped worker, used by
// the reactor's poll loop to reconcile against MDS's worker registry.
type ObservedWorker struct {
	Name     string
	State    string
	Active   bool
	Observed time.Time
}

// Launcher is the per-node backend the reactor drives: bare metal
// processes, Windows processes, or KVM domains. Exactly one Launcher
// implementation is wired into a given reactor process, selected by the
// --backend flag of cmd/thorium-reactor, matching the scaler's "one
// process, one backend" rule.
type Launcher interface {
	Launch(ctx context.Context, worker model.Worker, image model.Image) (LaunchOutcome, error)
	Terminate(ctx context.Context, workerName string, cleanupFiles bool) (TerminateOutcome, error)
	List(ctx context.Context) ([]ObservedWorker, error)
}
