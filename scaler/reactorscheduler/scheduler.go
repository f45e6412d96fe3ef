// Package reactorscheduler implements scaler.Scheduler for the
// BareMetal, Windows, and KVM backends: these backends don't expose a
// control-plane API the scaler can call directly (there is no
// Kubernetes-style cluster object to talk to). Instead the scaler writes
// the worker assignment into MDS, and the reactor already running on the
// target node picks it up the same way reactor.go's reconcileWorkers
// does for every backend. This Scheduler is therefore a thin adapter
// over mds.Client rather than a second transport: Spawn is a no-op (the
// scaler's own MDS.UpsertWorker right after Spawn is what the reactor
// actually reacts to), Delete flips the worker to Shutdown for the
// reactor to tear down, and ListManaged reports MDS's own view of
// workers for this scaler kind.
package reactorscheduler

import (
	"context"

	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/scaler"
)

// Scheduler adapts mds.Client to scaler.Scheduler for a reactor-polled
// backend.
type Scheduler struct {
	MDS  *mds.Client
	Kind model.Scaler
}

// New builds a Scheduler for one reactor-polled backend kind.
func New(mdsClient *mds.Client, kind model.Scaler) *Scheduler {
	return &Scheduler{MDS: mdsClient, Kind: kind}
}

// Spawn does nothing: the caller (scaler.spawn) writes the Worker row
// to MDS with Status=Spawning immediately after Spawn returns, and the
// node's reactor picks it up from there via ListWorkersByNode.
func (s *Scheduler) Spawn(ctx context.Context, node string, sp scaler.Spawned, img model.Image) error {
	return nil
}

// Delete marks the named worker Shutdown so the owning reactor tears
// down the backing process on its next reconcile tick.
func (s *Scheduler) Delete(ctx context.Context, cluster, name string) error {
	w, err := s.MDS.GetWorker(ctx, cluster, name)
	if err != nil {
		return err
	}
	w.Status = model.WorkerShutdown
	return s.MDS.UpsertWorker(ctx, w)
}

// ListManaged reports MDS's worker registry for this scaler kind,
// translated to scaler.ManagedWorker. A worker already marked Shutdown
// is reported terminal so the clear-terminal pass removes its MDS row;
// the reactor's own orphan cleanup (comparing its Launcher.List against
// MDS) is what actually kills the backing process once the row is
// gone, so removing it here doesn't race with termination.
func (s *Scheduler) ListManaged(ctx context.Context, cluster string) ([]scaler.ManagedWorker, error) {
	workers, err := s.MDS.ListWorkersByScaler(ctx, cluster, s.Kind)
	if err != nil {
		return nil, err
	}

	out := make([]scaler.ManagedWorker, 0, len(workers))
	for _, w := range workers {
		phase := scaler.ManagedRunning
		if w.Status == model.WorkerShutdown {
			phase = scaler.ManagedSucceeded
		}
		out = append(out, scaler.ManagedWorker{Name: w.Name, Node: w.Node, Phase: phase})
	}
	return out, nil
}
