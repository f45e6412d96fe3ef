package scaler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
)

// Scaler runs one control loop bound to exactly one (cluster, backend)
// pair: a single process never mixes scheduler kinds, so a cluster with
// K8s and bare-metal nodes runs two scaler processes.
type Scaler struct {
	Cluster string
	Kind    model.Scaler

	MDS       *mds.Client
	CS        *cs.Client
	Backend   Scheduler
	Cache     *Cache
	Metrics   *logging.Metrics
	Settings  Settings

	mu            sync.Mutex
	lastScheduled map[string]time.Time // requisition key -> time, reset on restart
	downScalable  map[string]time.Time // worker name -> time, reset on restart
	scaledDownAt  map[string]time.Time // worker name -> time it first went idle
}

// New builds a Scaler. Callers construct one Scaler per (cluster, backend)
// combination their process is responsible for.
func New(cluster string, kind model.Scaler, mdsClient *mds.Client, csClient *cs.Client, backend Scheduler, api *apiclient.Client, metrics *logging.Metrics, settings Settings) *Scaler {
	return &Scaler{
		Cluster:       cluster,
		Kind:          kind,
		MDS:           mdsClient,
		CS:            csClient,
		Backend:       backend,
		Cache:         NewCache(api),
		Metrics:       metrics,
		Settings:      settings,
		lastScheduled: make(map[string]time.Time),
		downScalable:  make(map[string]time.Time),
		scaledDownAt:  make(map[string]time.Time),
	}
}

// Run drives Tick on interval until ctx is cancelled.
func (s *Scaler) Run(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx).With().Str("scaler", string(s.Kind)).Str("cluster", s.Cluster).Logger()
	t := time.NewTicker(interval)
	defer t.Stop()
	var tick int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick++
			tickCtx := logging.WithFields(ctx, logging.TickFields(string(s.Kind), tick))
			start := time.Now()
			if err := s.Tick(tickCtx); err != nil {
				log.Error().Err(err).Msg("tick failed")
				if s.Metrics != nil {
					s.Metrics.TickErrors.WithLabelValues(string(s.Kind), "tick").Inc()
				}
			}
			if s.Metrics != nil {
				s.Metrics.RecordTick(string(s.Kind), time.Since(start))
			}
		}
	}
}

// Tick runs one full scheduling pass: refresh capacity, fair-share pass,
// deadline pass, scale-down pass, and clear-terminal reconciliation. A
// failure scoped to one requisition or worker taints that entity in bans
// for the rest of this tick (via BanSets) and the tick continues; a
// failure refreshing capacity aborts the whole tick.
func (s *Scaler) Tick(ctx context.Context) error {
	log := logging.FromContext(ctx)
	bans := NewBanSets()

	arena, nodeByName, err := s.refreshCapacity(ctx)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "refresh node capacity", err)
	}

	fairshare, deadline := NewPools(totalOf(nodeByName), s.Settings.Reserved, s.Settings.FairShareCap)

	fairshare, err = s.fairSharePass(ctx, arena, fairshare, bans)
	if err != nil {
		log.Warn().Err(err).Msg("fair-share pass encountered errors")
	}

	deadline, err = s.deadlinePass(ctx, arena, deadline, bans)
	if err != nil {
		log.Warn().Err(err).Msg("deadline pass encountered errors")
	}

	if s.Metrics != nil {
		s.Metrics.PoolUtilized.WithLabelValues(string(s.Kind), string(model.PoolFairShare)).Set(float64(fairshare.Utilized()))
		s.Metrics.PoolUtilized.WithLabelValues(string(s.Kind), string(model.PoolDeadline)).Set(float64(deadline.Utilized()))
	}

	if err := s.scaleDownPass(ctx); err != nil {
		log.Warn().Err(err).Msg("scale-down pass encountered errors")
	}

	if err := s.clearTerminalPass(ctx); err != nil {
		log.Warn().Err(err).Msg("clear-terminal pass encountered errors")
	}

	return nil
}

// refreshCapacity lists every node in the cluster, excludes any whose
// heartbeat is older than NodeHealthTimeout or whose Health isn't Healthy,
// subtracts every non-terminal worker's reserved resources, and returns the
// resulting Allocatable arena plus the node set it was built from. This
// step is retried with a per-attempt timeout before the tick aborts.
func (s *Scaler) refreshCapacity(ctx context.Context) (Allocatable, map[string]model.Node, error) {
	var nodes []model.Node
	err := withRetry(ctx, func(attemptCtx context.Context) error {
		var err error
		nodes, err = s.MDS.ListNodesByCluster(attemptCtx, s.Cluster)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	free := make(map[string]model.Resources, len(nodes))
	byName := make(map[string]model.Node, len(nodes))
	for _, n := range nodes {
		if n.Health != model.NodeHealthy {
			continue
		}
		if s.Settings.NodeHealthTimeout > 0 && now.Sub(n.HeartBeat) > s.Settings.NodeHealthTimeout {
			continue
		}
		byName[n.Name] = n
		free[n.Name] = n.Resources
	}

	workers, err := s.MDS.ListWorkersByScaler(ctx, s.Cluster, s.Kind)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range workers {
		if w.Status == model.WorkerShutdown {
			continue
		}
		if r, ok := free[w.Node]; ok {
			free[w.Node] = r.Sub(w.Resources)
		}
	}

	return NewAllocatable(free), byName, nil
}

func totalOf(nodes map[string]model.Node) model.Resources {
	var total model.Resources
	for _, n := range nodes {
		total = total.Add(n.Resources)
	}
	return total
}

// fairSharePass covers queue depth for every pending requisition in order
// of time-since-last-schedule (oldest first), spawning enough workers to
// bring existing cover up to queue depth, bounded by the fairshare pool and
// available node capacity. The per-requisition ordering is kept only in
// process memory (lastScheduled) and does not survive a restart.
func (s *Scaler) fairSharePass(ctx context.Context, arena Allocatable, pool Pool, bans *BanSets) (Pool, error) {
	log := logging.FromContext(ctx)

	pending, err := s.MDS.ListPendingRequisitions(ctx)
	if err != nil {
		return pool, err
	}

	ordered := pending
	s.mu.Lock()
	sort.Slice(ordered, func(i, j int) bool {
		return s.lastScheduled[requisitionKey(ordered[i])].Before(s.lastScheduled[requisitionKey(ordered[j])])
	})
	s.mu.Unlock()

	var firstErr error
	for _, p := range ordered {
		req := Requisition{User: p.User, Group: p.Group, Pipeline: p.Pipeline, Stage: p.Stage}
		if bans.Excluded(req) {
			continue
		}

		img, err := s.Cache.Image(ctx, p.Group, p.Stage)
		if err != nil {
			log.Warn().Err(err).Str("group", p.Group).Str("stage", p.Stage).Msg("resolve image for requisition")
			bans.TaintImage(p.Group, p.Stage)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if img.ScalerKind != s.Kind {
			continue
		}

		existing, err := s.MDS.CountWorkersForRequisition(ctx, p.Group, p.Pipeline, p.Stage, p.User)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		needed := p.Depth - existing
		if img.SpawnLimit > 0 {
			room := img.SpawnLimit - existing
			if room < needed {
				needed = room
			}
		}

		for i := int64(0); i < needed; i++ {
			if !pool.Enough(img.Resources) {
				break
			}
			node, ok := arena.BestFit(img.Resources)
			if !ok {
				break
			}

			name := NewWorkerName(p.Pipeline, p.Stage)
			sp := Spawned{
				Req: req, Cluster: s.Cluster, Node: node, Name: name,
				Resources: img.Resources, Pool: model.PoolFairShare, Spawn: true,
				DownScalable: downScalableAt(time.Now(), img.RuntimeEstimate),
			}
			if err := s.spawn(ctx, arena, sp, img); err != nil {
				log.Warn().Err(err).Str("node", node).Msg("spawn fair-share worker")
				bans.TaintGroup(p.Group)
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			pool = pool.Commit(img.Resources)
		}

		s.mu.Lock()
		s.lastScheduled[requisitionKey(p)] = time.Now()
		s.mu.Unlock()
	}

	return pool, firstErr
}

// deadlinePass scans the full per-scaler deadline stream in ascending
// order, covering any Created job not already claimed by a running worker,
// bounded by the deadline pool and available node capacity. Scanning the
// whole stream (not just already-due entries) since a job close to its
// deadline still needs a worker spawned ahead of time to have any chance
// of finishing it on time.
func (s *Scaler) deadlinePass(ctx context.Context, arena Allocatable, pool Pool, bans *BanSets) (Pool, error) {
	log := logging.FromContext(ctx)

	entries, err := s.CS.DeadlinesAscending(ctx, string(s.Kind))
	if err != nil {
		return pool, err
	}

	var firstErr error
	for _, e := range entries {
		covered, err := s.MDS.WorkerForActiveJob(ctx, e.JobID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if covered {
			continue
		}

		job, err := s.MDS.GetJob(ctx, e.JobID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if job.Status.Terminal() || job.Status != model.JobCreated {
			_ = s.CS.RemoveDeadline(ctx, string(s.Kind), e.JobID)
			continue
		}

		req := Requisition{User: job.Creator, Group: job.Group, Pipeline: job.Pipeline, Stage: job.Stage}
		if bans.Excluded(req) {
			continue
		}

		img, err := s.Cache.Image(ctx, job.Group, job.Stage)
		if err != nil {
			log.Warn().Err(err).Str("job", e.JobID).Msg("resolve image for deadline")
			bans.TaintImage(job.Group, job.Stage)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if img.ScalerKind != s.Kind {
			continue
		}
		if !pool.Enough(img.Resources) {
			continue
		}
		node, ok := arena.BestFit(img.Resources)
		if !ok {
			continue
		}

		name := NewWorkerName(job.Pipeline, job.Stage)
		sp := Spawned{
			Req: req, Cluster: s.Cluster, Node: node, Name: name,
			Resources: img.Resources, Pool: model.PoolDeadline, Spawn: true,
			DownScalable: downScalableAt(time.Now(), img.RuntimeEstimate),
			Deadline:     e.Deadline,
		}
		if err := s.spawn(ctx, arena, sp, img); err != nil {
			log.Warn().Err(err).Str("node", node).Str("job", e.JobID).Msg("spawn deadline worker")
			bans.TaintUser(job.Creator)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		pool = pool.Commit(img.Resources)
	}

	return pool, firstErr
}

// spawn reserves req's resources against the arena, issues the backend
// spawn order, and persists the worker's Spawning record. An RPC failure
// releases the reservation so the capacity isn't lost for the rest of
// this tick.
func (s *Scaler) spawn(ctx context.Context, arena Allocatable, sp Spawned, img model.Image) error {
	arena.Reserve(sp.Node, sp.Resources)

	if err := s.Backend.Spawn(ctx, sp.Node, sp, img); err != nil {
		arena.Release(sp.Node, sp.Resources)
		return err
	}

	w := model.Worker{
		Name: sp.Name, Cluster: sp.Cluster, Node: sp.Node, Scaler: s.Kind,
		User: sp.Req.User, Group: sp.Req.Group, Pipeline: sp.Req.Pipeline, Stage: sp.Req.Stage,
		Pool: sp.Pool, Status: model.WorkerSpawning, Spawned: time.Now(), HeartBeat: time.Now(),
		Resources: sp.Resources,
	}
	if err := s.MDS.UpsertWorker(ctx, w); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.SpawnsTotal.WithLabelValues(string(s.Kind), string(sp.Pool)).Inc()
	}
	return nil
}

// scaleDownPass deletes any FairShare worker with no active job once it
// has sat idle for at least ScaleDownGrace, measured from the first tick
// that saw it idle. It does not consult the DownScalable time computed at
// spawn, so ScaleDownGrace is the only delay before an idle worker is
// deleted.
func (s *Scaler) scaleDownPass(ctx context.Context) error {
	workers, err := s.MDS.ListWorkersByScaler(ctx, s.Cluster, s.Kind)
	if err != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, w := range workers {
		if w.Pool != model.PoolFairShare || w.Status == model.WorkerShutdown || w.ActiveJob != "" {
			delete(s.scaledDownAt, w.Name)
			continue
		}

		idleSince, tracked := s.scaledDownAt[w.Name]
		if !tracked {
			s.scaledDownAt[w.Name] = now
			continue
		}
		if now.Sub(idleSince) < s.Settings.ScaleDownGrace {
			continue
		}

		if err := s.Backend.Delete(ctx, s.Cluster, w.Name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.MDS.DeleteWorker(ctx, s.Cluster, w.Name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s.Metrics != nil {
			s.Metrics.DeletesTotal.WithLabelValues(string(s.Kind), "scale_down").Inc()
		}
		delete(s.scaledDownAt, w.Name)
		delete(s.downScalable, w.Name)
	}
	return firstErr
}

// clearTerminalPass reconciles the backend's view of managed workers
// against MDS: for every worker the backend reports terminal
// (Succeeded/Failed) it deletes the MDS worker record, closing the loop on
// processes that exited on their own (job completion, OOM kill, node
// failure) rather than by an explicit scaler Delete. The backend object
// itself is not deleted here.
func (s *Scaler) clearTerminalPass(ctx context.Context) error {
	managed, err := s.Backend.ListManaged(ctx, s.Cluster)
	if err != nil {
		return err
	}

	var firstErr error
	for _, m := range managed {
		if !m.Phase.Terminal() {
			continue
		}
		if err := s.MDS.DeleteWorker(ctx, s.Cluster, m.Name); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s.Metrics != nil {
			s.Metrics.DeletesTotal.WithLabelValues(string(s.Kind), "terminal").Inc()
		}
	}
	return firstErr
}

func requisitionKey(p mds.PendingRequisition) string {
	return p.User + "/" + p.Group + "/" + p.Pipeline + "/" + p.Stage
}
