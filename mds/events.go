package mds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/partition"
)

// eventPartitionSize is the size-second window used for the events
// table's (year, bucket) partition key, independent of tagPartitionSize
// since events and tags have unrelated retention/volume profiles.
const eventPartitionSize = 15 * time.Minute

// PutEvent inserts a row into the TTL'd events table. retention is the
// table-level TTL pulled from the retention config (§6); retention <= 0
// means no expiry is applied to this write.
func (c *Client) PutEvent(ctx context.Context, e model.Event, retention time.Duration) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshal event payload", err)
	}
	year, bucket := partition.Bucket(e.Timestamp, eventPartitionSize)

	var expiresAt any
	if retention > 0 {
		expiresAt = e.Timestamp.Add(retention)
	}

	const q = `
		INSERT INTO events (event_type, year, bucket, "timestamp", id, parent, "user", depth, payload, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_type, year, bucket, "timestamp", id) DO NOTHING`
	_, err = c.pool.Exec(ctx, q, e.Type, year, bucket, e.Timestamp, e.ID, nullableString(e.Parent), e.User, e.Depth, payload, expiresAt)
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert event", err)
	}
	return nil
}

// ListEventsInPartition reads every non-expired event in one (event_type,
// year, bucket) partition, in (timestamp, id) clustering order: the order
// search-streamer and event-handler rely on for deterministic
// compaction.
func (c *Client) ListEventsInPartition(ctx context.Context, eventType model.EventType, year int, bucket int64, now time.Time) ([]model.Event, error) {
	const q = `
		SELECT event_type, "timestamp", id, COALESCE(parent, ''), "user", depth, payload
		FROM events
		WHERE event_type = $1 AND year = $2 AND bucket = $3 AND (expires_at IS NULL OR expires_at > $4)
		ORDER BY "timestamp", id`
	rows, err := c.pool.Query(ctx, q, eventType, year, bucket, now)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list events", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var payload []byte
		if err := rows.Scan(&e.Type, &e.Timestamp, &e.ID, &e.Parent, &e.User, &e.Depth, &payload); err != nil {
			return nil, errs.Wrap(errs.Internal, "scan event row", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, errs.Wrap(errs.Internal, "unmarshal event payload", err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
