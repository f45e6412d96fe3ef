// Package agent implements the per-job Thorium worker process (C10): one
// process claims a single job at a time from the coordination store,
// executes the underlying tool, streams its logs, uploads its result, and
// exits once its Lifetime budget is exhausted. Tool execution runs
// against os/exec with a context.WithTimeout bound, in exec.go.
package agent

import (
	"context"
	"os"
	"time"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/blobstore"
	"github.com/thorium-platform/thorium/cs"
	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/logging"
	"github.com/thorium-platform/thorium/mds"
	"github.com/thorium-platform/thorium/model"
)

// maxStageRetries bounds how many times a job may return to Created before
// its reaction is allowed to fail outright. The model carries no explicit
// per-stage retry budget, so this is the agent's own local policy.
const maxStageRetries = 1

// Identity names the (cluster, node, worker) this process claims jobs as,
// and the (group, pipeline, stage, user, pool) queue it draws from.
// cmd/thorium-agent fills it from the THORIUM_CLUSTER, THORIUM_NODE,
// THORIUM_WORKER_NAME, THORIUM_GROUP, THORIUM_PIPELINE, THORIUM_STAGE,
// THORIUM_USER and THORIUM_POOL environment variables; it takes no
// command-line flags for these fields.
type Identity struct {
	Cluster  string
	Node     string
	Name     string
	Group    string
	Pipeline string
	Stage    string
	User     string
	Pool     model.Pool
}

// Agent is one per-job worker process bound to a single Image.
type Agent struct {
	mds     *mds.Client
	cs      *cs.Client
	bs      *blobstore.Client
	api     *apiclient.Client
	metrics *logging.Metrics
	id      Identity

	claimPollInterval time.Duration
}

// Config wires an Agent's dependencies and polling behaviour.
type Config struct {
	MDS     *mds.Client
	CS      *cs.Client
	BS      *blobstore.Client
	API     *apiclient.Client
	Metrics *logging.Metrics
	Identity

	// ClaimPollInterval governs how long the agent sleeps between empty
	// claim attempts. Defaults to 2s.
	ClaimPollInterval time.Duration
}

// New builds an Agent from cfg.
func New(cfg Config) *Agent {
	poll := cfg.ClaimPollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Agent{
		mds: cfg.MDS, cs: cfg.CS, bs: cfg.BS, api: cfg.API, metrics: cfg.Metrics,
		id:                cfg.Identity,
		claimPollInterval: poll,
	}
}

// Run resolves img's definition once, registers this worker as Running,
// then drives the claim/execute/report loop until the image's Lifetime
// budget is exhausted or ctx is cancelled after the in-flight job
// finishes.
func (a *Agent) Run(ctx context.Context, img model.Image) error {
	log := logging.FromContext(ctx).With().Str("worker", a.id.Name).Str("image", img.Name).Logger()
	budget := newLifetimeBudget(img.Lifetime, a.id.Pool)
	log.Info().Str("lifetime", budget.String()).Msg("agent starting")

	worker := model.Worker{
		Name: a.id.Name, Cluster: a.id.Cluster, Node: a.id.Node,
		Scaler: img.ScalerKind, User: a.id.User, Group: a.id.Group,
		Pipeline: a.id.Pipeline, Stage: a.id.Stage, Pool: a.id.Pool,
		Status: model.WorkerRunning, Spawned: time.Now(), HeartBeat: time.Now(),
		Resources: img.Resources,
	}
	if err := a.updateWorker(ctx, worker); err != nil {
		return errs.Wrap(errs.Unavailable, "register worker running", err)
	}
	defer func() {
		if err := a.cs.DeregisterWorker(context.Background(), a.id.Cluster, a.id.Node, string(img.ScalerKind), a.id.Name); err != nil {
			log.Warn().Err(err).Msg("deregister worker")
		}
		if err := a.mds.DeleteWorker(context.Background(), a.id.Cluster, a.id.Name); err != nil {
			log.Warn().Err(err).Msg("delete worker record")
		}
	}()

	workDir, err := os.MkdirTemp("", "thorium-agent-*")
	if err != nil {
		return errs.Wrap(errs.Internal, "create work directory", err)
	}
	defer os.RemoveAll(workDir)

	start := time.Now()
	for {
		if budget.Exhausted(start, time.Now()) {
			log.Info().Msg("lifetime budget exhausted, exiting")
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal honoured, exiting after last job")
			return nil
		default:
		}

		jobID, err := a.cs.ClaimLowestDeadline(ctx, a.id.Group, a.id.Pipeline, a.id.Stage, a.id.User, string(model.JobCreated))
		if err != nil {
			log.Warn().Err(err).Msg("claim job")
			sleep(ctx, a.claimPollInterval)
			continue
		}
		if jobID == "" {
			sleep(ctx, a.claimPollInterval)
			continue
		}

		a.runJob(ctx, jobID, img, workDir)
		budget.RecordJob()
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// updateWorker writes the hot-path copy to cs and the durable record to
// mds, matching the dual-write UpsertWorker/RegisterWorker shape every
// other worker-state mutation in this codebase uses.
func (a *Agent) updateWorker(ctx context.Context, w model.Worker) error {
	if err := a.mds.UpsertWorker(ctx, w); err != nil {
		return err
	}
	return a.cs.RegisterWorker(ctx, w.Cluster, w.Node, string(w.Scaler), w.Name, w)
}

// runJob executes and reports exactly one job that Run has already
// claimed. Errors are logged and swallowed; the process itself does not
// crash. A job missing from mds, or one that cannot be marked Running, is
// only logged and dropped, with no status change.
func (a *Agent) runJob(ctx context.Context, jobID string, img model.Image, workDir string) {
	ctx = logging.WithFields(ctx, logging.JobFields(jobID, "", a.id.Stage))
	l := logging.FromContext(ctx)

	job, err := a.mds.GetJob(ctx, jobID)
	if err != nil {
		l.Warn().Err(err).Msg("claimed job not found in mds, dropping")
		return
	}
	l = l.With().Str("reaction", job.Reaction).Logger()

	if err := a.mds.UpdateJobStatus(ctx, jobID, model.JobRunning); err != nil {
		l.Warn().Err(err).Msg("mark job running")
		return
	}

	sample, err := materialiseSample(ctx, a.api, job, workDir)
	if err != nil {
		l.Warn().Err(err).Msg("materialise sample")
		a.failJob(ctx, l, job, img, nil)
		return
	}

	start := time.Now()
	var position int64
	run := toolRun{
		img:     img,
		workDir: workDir,
		sample:  sample,
		onLine: func(stream, line string) {
			position++
			_ = a.mds.AppendLog(ctx, mds.LogLine{
				Reaction: job.Reaction, Stage: job.Stage, Position: position,
				Line: "[" + stream + "] " + line, Written: time.Now(),
			})
		},
	}
	result, err := run.run(ctx)
	duration := time.Since(start)
	if a.metrics != nil {
		status := "completed"
		if err != nil || result.ExitCode != 0 {
			status = "failed"
		}
		a.metrics.RecordJob(job.Group, job.Pipeline, job.Stage, status, duration)
	}
	if err != nil {
		l.Warn().Err(err).Msg("tool execution error")
		a.failJob(ctx, l, job, img, nil)
		return
	}

	if result.ExitCode != 0 {
		l.Info().Int("exit_code", result.ExitCode).Msg("tool exited nonzero")
		a.failJob(ctx, l, job, img, &result)
		return
	}

	a.completeJob(ctx, l, job, img, result)
}
