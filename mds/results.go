package mds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// PutResult inserts a tool result row, partitioned by id, and its
// auxiliary results_ids index row keyed by (key, tool, group), both in one
// transaction. Both inserts ignore conflicts; rows affected is not checked.
func (c *Client) PutResult(ctx context.Context, r model.Result) error {
	body, err := json.Marshal(r.Result)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal result body", err)
	}
	files, err := json.Marshal(r.Files)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal result files", err)
	}
	children, err := json.Marshal(r.Children)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal result children", err)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "begin result transaction", err)
	}
	defer tx.Rollback(ctx)

	const insertResult = `
		INSERT INTO results (id, tool, tool_version, cmd, "group", key, uploaded, display_type, result, files, children, body_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`
	if _, err := tx.Exec(ctx, insertResult, r.ID, r.Tool, r.ToolVersion, r.Cmd, r.Group, r.Key, r.Uploaded, r.DisplayType, body, files, children, r.BodyHash); err != nil {
		return errs.Wrap(errs.Unavailable, "insert result", err)
	}

	const insertIndex = `
		INSERT INTO results_ids (key, tool, "group", result_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key, tool, "group", result_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insertIndex, r.Key, r.Tool, r.Group, r.ID); err != nil {
		return errs.Wrap(errs.Unavailable, "index result", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "commit result", err)
	}
	return nil
}

// GetResult reads one result by its id, the table's partition key.
func (c *Client) GetResult(ctx context.Context, id string) (model.Result, error) {
	const q = `
		SELECT id, tool, tool_version, cmd, "group", key, uploaded, display_type, result, files, children, body_hash
		FROM results WHERE id = $1`
	var r model.Result
	var body, files, children []byte
	err := c.pool.QueryRow(ctx, q, id).Scan(&r.ID, &r.Tool, &r.ToolVersion, &r.Cmd, &r.Group, &r.Key, &r.Uploaded, &r.DisplayType, &body, &files, &children, &r.BodyHash)
	if err == pgx.ErrNoRows {
		return model.Result{}, errs.New(errs.NotFound, "result: "+id)
	}
	if err != nil {
		return model.Result{}, errs.Wrap(errs.Unavailable, "read result", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &r.Result); err != nil {
			return model.Result{}, errs.Wrap(errs.Internal, "unmarshal result body", err)
		}
	}
	if len(files) > 0 {
		_ = json.Unmarshal(files, &r.Files)
	}
	if len(children) > 0 {
		_ = json.Unmarshal(children, &r.Children)
	}
	return r, nil
}

// ListResultsByKey looks up results_ids for every result recorded against
// one (key, tool, group) tuple, then fetches each result row.
func (c *Client) ListResultsByKey(ctx context.Context, key, tool, group string) ([]model.Result, error) {
	const q = `SELECT result_id FROM results_ids WHERE key = $1 AND tool = $2 AND "group" = $3`
	rows, err := c.pool.Query(ctx, q, key, tool, group)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list result ids", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.Internal, "scan result id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]model.Result, 0, len(ids))
	for _, id := range ids {
		r, err := c.GetResult(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ListResultsByItem returns every result recorded against one (key, group)
// tuple regardless of tool: the point lookup the search-streamer's event
// phase uses to resolve a ResultSearchEvent into the current document
// state for (item, group).
func (c *Client) ListResultsByItem(ctx context.Context, group, key string) ([]model.Result, error) {
	const q = `
		SELECT id, tool, tool_version, cmd, "group", key, uploaded, display_type, result, files, children, body_hash
		FROM results WHERE "group" = $1 AND key = $2
		ORDER BY uploaded DESC`
	rows, err := c.pool.Query(ctx, q, group, key)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list results by item", err)
	}
	defer rows.Close()

	var out []model.Result
	for rows.Next() {
		var r model.Result
		var body, files, children []byte
		if err := rows.Scan(&r.ID, &r.Tool, &r.ToolVersion, &r.Cmd, &r.Group, &r.Key, &r.Uploaded, &r.DisplayType, &body, &files, &children, &r.BodyHash); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan result row", err)
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &r.Result); err != nil {
				return nil, errs.Wrap(errs.Internal, "unmarshal result body", err)
			}
		}
		if len(files) > 0 {
			_ = json.Unmarshal(files, &r.Files)
		}
		if len(children) > 0 {
			_ = json.Unmarshal(children, &r.Children)
		}
		out = append(out, r)
	}
	return out, nil
}

// ResultItemRef names one (group, key) tuple with its most recent upload
// time, as enumerated by ListDistinctResultItems.
type ResultItemRef struct {
	Group    string
	Key      string
	Uploaded time.Time
}

// ListDistinctResultItems enumerates every (group, key) tuple that has at
// least one result, for the search-streamer's initiation phase to hash into
// token-range chunks.
func (c *Client) ListDistinctResultItems(ctx context.Context) ([]ResultItemRef, error) {
	const q = `
		SELECT "group", key, MAX(uploaded)
		FROM results
		GROUP BY "group", key`
	rows, err := c.pool.Query(ctx, q)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list distinct result items", err)
	}
	defer rows.Close()

	var out []ResultItemRef
	for rows.Next() {
		var r ResultItemRef
		if err := rows.Scan(&r.Group, &r.Key, &r.Uploaded); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan result item ref", err)
		}
		out = append(out, r)
	}
	return out, nil
}
