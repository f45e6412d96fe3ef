package mds

import (
	"context"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// PendingRequisition is one distinct (creator, group, pipeline, stage)
// tuple with at least one Created job, plus the count the scaler's
// fair-share pass uses to size how many workers still need covering.
type PendingRequisition struct {
	User     string
	Group    string
	Pipeline string
	Stage    string
	Depth    int64
}

// ListPendingRequisitions groups every Created job into its requisition,
// the set the scaler's fair-share pass iterates each tick.
func (c *Client) ListPendingRequisitions(ctx context.Context) ([]PendingRequisition, error) {
	const q = `
		SELECT creator, "group", pipeline, stage, count(*)
		FROM jobs
		WHERE status = $1
		GROUP BY creator, "group", pipeline, stage`
	rows, err := c.pool.Query(ctx, q, model.JobCreated)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list pending requisitions", err)
	}
	defer rows.Close()

	var out []PendingRequisition
	for rows.Next() {
		var r PendingRequisition
		if err := rows.Scan(&r.User, &r.Group, &r.Pipeline, &r.Stage, &r.Depth); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan pending requisition row", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ListWorkersByScaler returns every worker bound to one (cluster, scaler
// kind) pair, regardless of node: the set the scale-down and
// clear-terminal passes iterate each tick.
func (c *Client) ListWorkersByScaler(ctx context.Context, cluster string, scalerKind model.Scaler) ([]model.Worker, error) {
	const q = `
		SELECT cluster, name, node, scaler, "user", "group", pipeline, stage, pool, status, spawned, heart_beat, COALESCE(active_job, ''), scaled_down
		FROM workers WHERE cluster = $1 AND scaler = $2 ORDER BY name`
	rows, err := c.pool.Query(ctx, q, cluster, scalerKind)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list workers by scaler", err)
	}
	defer rows.Close()

	var out []model.Worker
	for rows.Next() {
		var w model.Worker
		if err := rows.Scan(&w.Cluster, &w.Name, &w.Node, &w.Scaler, &w.User, &w.Group, &w.Pipeline, &w.Stage, &w.Pool, &w.Status, &w.Spawned, &w.HeartBeat, &w.ActiveJob, &w.ScaledDown); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan worker row", err)
		}
		out = append(out, w)
	}
	return out, nil
}

// CountWorkersForRequisition reports how many non-terminal workers are
// currently bound to one requisition, so the fair-share pass only spawns
// enough workers to cover the gap between queue depth and existing cover.
func (c *Client) CountWorkersForRequisition(ctx context.Context, group, pipeline, stage, user string) (int64, error) {
	const q = `
		SELECT count(*) FROM workers
		WHERE "group" = $1 AND pipeline = $2 AND stage = $3 AND "user" = $4 AND status != $5`
	var n int64
	err := c.pool.QueryRow(ctx, q, group, pipeline, stage, user, model.WorkerShutdown).Scan(&n)
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "count workers for requisition", err)
	}
	return n, nil
}

// WorkerForActiveJob reports whether any worker currently claims jobID as
// its active job: the deadline pass's "already covered by a running
// worker" check.
func (c *Client) WorkerForActiveJob(ctx context.Context, jobID string) (bool, error) {
	const q = `SELECT count(*) FROM workers WHERE active_job = $1 AND status != $2`
	var n int64
	err := c.pool.QueryRow(ctx, q, jobID, model.WorkerShutdown).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Unavailable, "check worker for job", err)
	}
	return n > 0, nil
}
