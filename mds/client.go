package mds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// Client is the metadata store's access point: one pool, raw SQL per
// operation, explicit column lists rather than struct-tag reflection.
type Client struct {
	pool *pool
}

// Config configures a Client.
type Config struct {
	ConnString string
}

// NewClient connects to PostgreSQL and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	p, err := newPool(ctx, cfg.ConnString)
	if err != nil {
		return nil, err
	}
	return &Client{pool: p}, nil
}

// Close releases the connection pool.
func (c *Client) Close() { c.pool.Close() }

// CreateReaction inserts a new reaction row in the Created status.
func (c *Client) CreateReaction(ctx context.Context, r model.Reaction) error {
	args, err := json.Marshal(r.Args)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal reaction args", err)
	}
	const q = `
		INSERT INTO reactions (id, "group", pipeline, status, current_stage, sla_seconds, args, creator, depth, parent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = c.pool.Exec(ctx, q, r.ID, r.Group, r.Pipeline, model.ReactionCreated, r.CurrentStage, r.SLASeconds, args, r.Creator, r.Depth, nullableString(r.Parent))
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert reaction", err)
	}
	return nil
}

// GetReaction reads one reaction by id.
func (c *Client) GetReaction(ctx context.Context, id string) (model.Reaction, error) {
	const q = `
		SELECT id, "group", pipeline, status, current_stage, sla_seconds, args, creator, depth, COALESCE(parent, '')
		FROM reactions WHERE id = $1`
	var r model.Reaction
	var args []byte
	err := c.pool.QueryRow(ctx, q, id).Scan(&r.ID, &r.Group, &r.Pipeline, &r.Status, &r.CurrentStage, &r.SLASeconds, &args, &r.Creator, &r.Depth, &r.Parent)
	if err == pgx.ErrNoRows {
		return model.Reaction{}, errs.New(errs.NotFound, "reaction: "+id)
	}
	if err != nil {
		return model.Reaction{}, errs.Wrap(errs.Unavailable, "read reaction", err)
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &r.Args); err != nil {
			return model.Reaction{}, errs.Wrap(errs.Internal, "unmarshal reaction args", err)
		}
	}
	return r, nil
}

// UpdateReactionStatus advances a reaction's status and, when moving into
// a later stage, its current_stage index.
func (c *Client) UpdateReactionStatus(ctx context.Context, id string, status model.ReactionStatus, currentStage int) error {
	const q = `UPDATE reactions SET status = $1, current_stage = $2 WHERE id = $3`
	tag, err := c.pool.Exec(ctx, q, status, currentStage, id)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "update reaction status", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.NotFound, "reaction: "+id)
	}
	return nil
}

// CreateJob inserts a new job row in the Created status.
func (c *Client) CreateJob(ctx context.Context, j model.Job) error {
	args, err := json.Marshal(j.Args)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal job args", err)
	}
	const q = `
		INSERT INTO jobs (id, reaction, "group", pipeline, stage, creator, status, deadline, args)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = c.pool.Exec(ctx, q, j.ID, j.Reaction, j.Group, j.Pipeline, j.Stage, j.Creator, model.JobCreated, j.Deadline, args)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert job", err)
	}
	return nil
}

// GetJob reads one job by id.
func (c *Client) GetJob(ctx context.Context, id string) (model.Job, error) {
	const q = `
		SELECT id, reaction, "group", pipeline, stage, creator, status, deadline, args
		FROM jobs WHERE id = $1`
	var j model.Job
	var args []byte
	err := c.pool.QueryRow(ctx, q, id).Scan(&j.ID, &j.Reaction, &j.Group, &j.Pipeline, &j.Stage, &j.Creator, &j.Status, &j.Deadline, &args)
	if err == pgx.ErrNoRows {
		return model.Job{}, errs.New(errs.NotFound, "job: "+id)
	}
	if err != nil {
		return model.Job{}, errs.Wrap(errs.Unavailable, "read job", err)
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &j.Args); err != nil {
			return model.Job{}, errs.Wrap(errs.Internal, "unmarshal job args", err)
		}
	}
	return j, nil
}

// UpdateJobStatus transitions a job's status. Used by the agent on claim,
// completion and failure, and by the scaler's deadline pass when it
// returns a crashed job's state to Created.
func (c *Client) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	const q = `UPDATE jobs SET status = $1 WHERE id = $2`
	tag, err := c.pool.Exec(ctx, q, status, id)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "update job status", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.NotFound, "job: "+id)
	}
	return nil
}

// ListActiveJobsByReaction returns every non-terminal job for a reaction,
// in deadline order: used by the reaction-progression check that decides
// whether a stage group has finished.
func (c *Client) ListActiveJobsByReaction(ctx context.Context, reactionID string) ([]model.Job, error) {
	const q = `
		SELECT id, reaction, "group", pipeline, stage, creator, status, deadline, args
		FROM jobs
		WHERE reaction = $1 AND status NOT IN ($2, $3)
		ORDER BY deadline`
	rows, err := c.pool.Query(ctx, q, reactionID, model.JobCompleted, model.JobFailed)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list active jobs", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		var j model.Job
		var args []byte
		if err := rows.Scan(&j.ID, &j.Reaction, &j.Group, &j.Pipeline, &j.Stage, &j.Creator, &j.Status, &j.Deadline, &args); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan job row", err)
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &j.Args); err != nil {
				return nil, errs.Wrap(errs.Internal, "unmarshal job args", err)
			}
		}
		out = append(out, j)
	}
	return out, nil
}

// DueDeadline reports whether a job's deadline has passed as of now: used
// to sanity-check a crashed-worker detection before the scaler re-covers
// the job.
func DueDeadline(j model.Job, now time.Time) bool {
	return now.After(j.Deadline)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
