package reactor

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/scaler"
)

// Reactor is the per-node daemon (C9) that translates the scaler's
// Spawning/Shutdown worker records into actual OS-level processes on this
// host, via whichever Launcher backend this process was built for.
type Reactor struct {
	Cluster string
	Node    string
	Kind    model.Scaler

	MDS      *mds.Client
	CS       *cs.Client
	Launcher Launcher
	Cache    *scaler.Cache
	Metrics  *logging.Metrics

	scheduler *Scheduler
	lastKnown model.Resources
}

// New builds a Reactor. api is used only to resolve Image definitions for
// workers this reactor is asked to launch.
func New(cluster, node string, kind model.Scaler, mdsClient *mds.Client, csClient *cs.Client, launcher Launcher, api *apiclient.Client, metrics *logging.Metrics) *Reactor {
	return &Reactor{
		Cluster: cluster, Node: node, Kind: kind,
		MDS: mdsClient, CS: csClient, Launcher: launcher,
		Cache: scaler.NewCache(api), Metrics: metrics,
	}
}

// Run drives the reactor's periodic chores (resource refresh, heartbeat,
// worker reconciliation) on a 1s poll of the task scheduler until ctx is
// cancelled.
func (r *Reactor) Run(ctx context.Context) {
	log := logging.FromContext(ctx).With().Str("cluster", r.Cluster).Str("node", r.Node).Logger()
	r.scheduler = NewScheduler(time.Now())

	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, task := range r.scheduler.PopDue(now) {
				if err := r.runTask(ctx, task); err != nil {
					log.Warn().Err(err).Str("task", string(task.Kind)).Msg("reactor task failed")
				}
				r.scheduler.Schedule(time.Now().Add(task.Kind.Delay()), task)
			}
		}
	}
}

func (r *Reactor) runTask(ctx context.Context, task Task) error {
	switch task.Kind {
	case TaskResourceRefresh:
		return r.refreshResources(ctx)
	case TaskHealthHeartbeat:
		return r.heartbeat(ctx)
	case TaskLogFlush:
		return r.reconcileWorkers(ctx)
	default:
		return nil
	}
}

// refreshResources samples this host's capacity and upserts the Node
// record so the cluster's scalers see current capacity.
func (r *Reactor) refreshResources(ctx context.Context) error {
	res, err := DiscoverResources()
	if err != nil {
		return err
	}
	r.lastKnown = res
	return r.MDS.UpsertNode(ctx, model.Node{
		Cluster: r.Cluster, Name: r.Node, Health: model.NodeHealthy,
		Resources: res, HeartBeat: time.Now(),
	})
}

// heartbeat re-stamps the Node's heartbeat without re-sampling capacity,
// keeping the scaler's health check from timing this node out between
// full resource refreshes.
func (r *Reactor) heartbeat(ctx context.Context) error {
	return r.MDS.UpsertNode(ctx, model.Node{
		Cluster: r.Cluster, Name: r.Node, Health: model.NodeHealthy,
		Resources: r.lastKnown, HeartBeat: time.Now(),
	})
}

// reconcileWorkers classifies every worker MDS has assigned to this node
// into to-spawn (Spawning with no backing process yet), to-delete
// (Shutdown but still running), and orphaned (a backing process the
// scaler no longer tracks at all) and dispatches each to the Launcher.
func (r *Reactor) reconcileWorkers(ctx context.Context) error {
	log := logging.FromContext(ctx)

	assigned, err := r.MDS.ListWorkersByNode(ctx, r.Cluster, r.Node)
	if err != nil {
		return err
	}
	managed, err := r.Launcher.List(ctx)
	if err != nil {
		return err
	}
	managedByName := make(map[string]ObservedWorker, len(managed))
	for _, m := range managed {
		managedByName[m.Name] = m
	}

	seen := make(map[string]bool, len(assigned))
	for _, w := range assigned {
		seen[w.Name] = true
		_, isManaged := managedByName[w.Name]

		switch {
		case w.Status == model.WorkerShutdown:
			if isManaged {
				if _, err := r.Launcher.Terminate(ctx, w.Name, true); err != nil {
					log.Warn().Err(err).Str("worker", w.Name).Msg("terminate worker")
				}
			}
		case w.Status == model.WorkerSpawning && !isManaged:
			img, err := r.Cache.Image(ctx, w.Group, w.Stage)
			if err != nil {
				log.Warn().Err(err).Str("worker", w.Name).Msg("resolve image for spawn")
				continue
			}
			outcome, err := r.Launcher.Launch(ctx, w, img)
			if err != nil {
				log.Warn().Err(err).Str("worker", w.Name).Msg("launch worker")
				continue
			}
			if !outcome.Success {
				log.Warn().Str("worker", w.Name).Str("stage", outcome.Stage).Str("reason", outcome.ErrorMessage).Msg("launch did not succeed")
				continue
			}
			w.Status = model.WorkerRunning
			if err := r.MDS.UpsertWorker(ctx, w); err != nil {
				log.Warn().Err(err).Str("worker", w.Name).Msg("mark worker running")
			}
		}
	}

	for name := range managedByName {
		if !seen[name] {
			if _, err := r.Launcher.Terminate(ctx, name, true); err != nil {
				log.Warn().Err(err).Str("worker", name).Msg("terminate orphaned worker")
			}
		}
	}
	return nil
}
