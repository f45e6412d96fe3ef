package mds

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// UpsertNode writes a node's current health and resources, partitioned by
// cluster and clustered by name.
func (c *Client) UpsertNode(ctx context.Context, n model.Node) error {
	const q = `
		INSERT INTO nodes (cluster, name, health, cpu_milli, memory_mib, ephemeral_mib, worker_slots, nvidia_gpu, amd_gpu, heart_beat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (cluster, name) DO UPDATE SET
			health = EXCLUDED.health,
			cpu_milli = EXCLUDED.cpu_milli,
			memory_mib = EXCLUDED.memory_mib,
			ephemeral_mib = EXCLUDED.ephemeral_mib,
			worker_slots = EXCLUDED.worker_slots,
			nvidia_gpu = EXCLUDED.nvidia_gpu,
			amd_gpu = EXCLUDED.amd_gpu,
			heart_beat = EXCLUDED.heart_beat`
	_, err := c.pool.Exec(ctx, q, n.Cluster, n.Name, n.Health,
		n.Resources.CPUMilli, n.Resources.MemoryMiB, n.Resources.EphemeralMiB, n.Resources.WorkerSlots, n.Resources.NvidiaGPU, n.Resources.AMDGpu,
		n.HeartBeat)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "upsert node", err)
	}
	return nil
}

// ListNodesByCluster returns every node registered in one cluster.
func (c *Client) ListNodesByCluster(ctx context.Context, cluster string) ([]model.Node, error) {
	const q = `
		SELECT cluster, name, health, cpu_milli, memory_mib, ephemeral_mib, worker_slots, nvidia_gpu, amd_gpu, heart_beat
		FROM nodes WHERE cluster = $1 ORDER BY name`
	rows, err := c.pool.Query(ctx, q, cluster)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list nodes", err)
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		var n model.Node
		if err := rows.Scan(&n.Cluster, &n.Name, &n.Health,
			&n.Resources.CPUMilli, &n.Resources.MemoryMiB, &n.Resources.EphemeralMiB, &n.Resources.WorkerSlots, &n.Resources.NvidiaGPU, &n.Resources.AMDGpu,
			&n.HeartBeat); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan node row", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// UpsertWorker writes the authoritative MDS copy of a worker's state. The
// coordination store's worker_data hash is the hot-path copy the scaler
// reads per tick; this is the durable record used for audit/history.
func (c *Client) UpsertWorker(ctx context.Context, w model.Worker) error {
	const q = `
		INSERT INTO workers (cluster, name, node, scaler, "user", "group", pipeline, stage, pool, status, spawned, heart_beat, active_job, scaled_down)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (cluster, name) DO UPDATE SET
			status = EXCLUDED.status,
			heart_beat = EXCLUDED.heart_beat,
			active_job = EXCLUDED.active_job,
			scaled_down = EXCLUDED.scaled_down`
	_, err := c.pool.Exec(ctx, q, w.Cluster, w.Name, w.Node, w.Scaler, w.User, w.Group, w.Pipeline, w.Stage, w.Pool, w.Status, w.Spawned, w.HeartBeat, nullableString(w.ActiveJob), w.ScaledDown)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "upsert worker", err)
	}
	return nil
}

// GetWorker reads one worker by (cluster, name).
func (c *Client) GetWorker(ctx context.Context, cluster, name string) (model.Worker, error) {
	const q = `
		SELECT cluster, name, node, scaler, "user", "group", pipeline, stage, pool, status, spawned, heart_beat, COALESCE(active_job, ''), scaled_down
		FROM workers WHERE cluster = $1 AND name = $2`
	var w model.Worker
	err := c.pool.QueryRow(ctx, q, cluster, name).Scan(&w.Cluster, &w.Name, &w.Node, &w.Scaler, &w.User, &w.Group, &w.Pipeline, &w.Stage, &w.Pool, &w.Status, &w.Spawned, &w.HeartBeat, &w.ActiveJob, &w.ScaledDown)
	if err == pgx.ErrNoRows {
		return model.Worker{}, errs.New(errs.NotFound, "worker: "+name)
	}
	if err != nil {
		return model.Worker{}, errs.Wrap(errs.Unavailable, "read worker", err)
	}
	return w, nil
}

// ListWorkersByNode returns every worker assigned to one (cluster, node),
// the set the reactor polls each tick to classify into to-spawn /
// to-check / to-delete.
func (c *Client) ListWorkersByNode(ctx context.Context, cluster, node string) ([]model.Worker, error) {
	const q = `
		SELECT cluster, name, node, scaler, "user", "group", pipeline, stage, pool, status, spawned, heart_beat, COALESCE(active_job, ''), scaled_down
		FROM workers WHERE cluster = $1 AND node = $2 ORDER BY name`
	rows, err := c.pool.Query(ctx, q, cluster, node)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list workers by node", err)
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

// DeleteWorker removes a worker's durable record once it is torn down.
func (c *Client) DeleteWorker(ctx context.Context, cluster, name string) error {
	const q = `DELETE FROM workers WHERE cluster = $1 AND name = $2`
	if _, err := c.pool.Exec(ctx, q, cluster, name); err != nil {
		return errs.Wrap(errs.Unavailable, "delete worker", err)
	}
	return nil
}
