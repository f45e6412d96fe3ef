package mds

import (
	"context"
	"time"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/partition"
)

// logPartitionSize buckets logs into hourly partitions, per §6's
// (reaction, stage, bucket) clustered-by-position layout.
const logPartitionSize = time.Hour

// LogLine is one streamed line of agent stdout/stderr, positioned
// monotonically within its (reaction, stage, bucket) partition.
type LogLine struct {
	Reaction string
	Stage    string
	Position int64
	Line     string
	Written  time.Time
}

// AppendLog writes one log line at a caller-assigned monotonic position:
// the agent increments Position per line it streams, so ordering survives
// partition boundaries without relying on insert order.
func (c *Client) AppendLog(ctx context.Context, l LogLine) error {
	_, bucket := partition.Bucket(l.Written, logPartitionSize)
	const q = `
		INSERT INTO logs (reaction, stage, bucket, "position", line, written)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reaction, stage, bucket, "position") DO NOTHING`
	_, err := c.pool.Exec(ctx, q, l.Reaction, l.Stage, bucket, l.Position, l.Line, l.Written)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "append log line", err)
	}
	return nil
}

// ListLogs returns every log line in one (reaction, stage, bucket)
// partition, ordered by position.
func (c *Client) ListLogs(ctx context.Context, reaction, stage string, bucket int64) ([]LogLine, error) {
	const q = `
		SELECT reaction, stage, "position", line, written
		FROM logs
		WHERE reaction = $1 AND stage = $2 AND bucket = $3
		ORDER BY "position"`
	rows, err := c.pool.Query(ctx, q, reaction, stage, bucket)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list log lines", err)
	}
	defer rows.Close()

	var out []LogLine
	for rows.Next() {
		var l LogLine
		if err := rows.Scan(&l.Reaction, &l.Stage, &l.Position, &l.Line, &l.Written); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan log row", err)
		}
		out = append(out, l)
	}
	return out, nil
}
