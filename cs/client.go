// Package cs implements the Thorium coordination store (C2): the
// namespaced Redis key layout that the scaler, event handler,
// search-streamer and agent use to coordinate without sharing
// in-process state.
//
// Every key is namespaced by a configured prefix ({ns}), matching the
// key-layout contract: sorted sets scored by timestamp/deadline, hashes
// for payloads, and sets for membership.
package cs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thorium-platform/thorium/errs"
)

// Client wraps a Redis connection scoped to one namespace.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// Config configures a Client.
type Config struct {
	RedisURL  string // e.g. redis://localhost:6379/0
	Namespace string // key prefix, defaults to "thorium"
}

// NewClient dials Redis and verifies connectivity with a ping.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "parse redis url", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "connect to coordination store", err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = "thorium"
	}

	return &Client{rdb: rdb, prefix: ns}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) key(parts ...string) string {
	key := c.prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// JobQueueKey returns the sorted-set key for the (group, pipeline, stage,
// user, status) job queue. Score = deadline unix seconds, member = job id.
func (c *Client) JobQueueKey(group, pipeline, stage, user, status string) string {
	return c.key("job_queue", group, pipeline, stage, user, status)
}

// EnqueueJob adds a job id to its status queue, scored by deadline.
func (c *Client) EnqueueJob(ctx context.Context, group, pipeline, stage, user, status, jobID string, deadline time.Time) error {
	key := c.JobQueueKey(group, pipeline, stage, user, status)
	err := c.rdb.ZAdd(ctx, key, redis.Z{Score: float64(deadline.Unix()), Member: jobID}).Err()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "enqueue job", err)
	}
	return nil
}

// QueueDepth reports the number of jobs waiting in one status queue: what
// the scaler reads per tick to size its fair-share and deadline passes.
func (c *Client) QueueDepth(ctx context.Context, group, pipeline, stage, user, status string) (int64, error) {
	n, err := c.rdb.ZCard(ctx, c.JobQueueKey(group, pipeline, stage, user, status)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "read queue depth", err)
	}
	return n, nil
}

// ClaimLowestDeadline pops the job with the lowest deadline score from a
// status queue: the agent's claim primitive. Returns ("", nil) when the
// queue is empty.
func (c *Client) ClaimLowestDeadline(ctx context.Context, group, pipeline, stage, user, status string) (string, error) {
	res, err := c.rdb.ZPopMin(ctx, c.JobQueueKey(group, pipeline, stage, user, status), 1).Result()
	if err != nil {
		return "", errs.Wrap(errs.Unavailable, "claim job", err)
	}
	if len(res) == 0 {
		return "", nil
	}
	id, _ := res[0].Member.(string)
	return id, nil
}

// RemoveFromQueue removes a job id from a status queue without claiming
// it: used when a job transitions status and must move queues.
func (c *Client) RemoveFromQueue(ctx context.Context, group, pipeline, stage, user, status, jobID string) error {
	err := c.rdb.ZRem(ctx, c.JobQueueKey(group, pipeline, stage, user, status), jobID).Err()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "remove job from queue", err)
	}
	return nil
}

// JobData reads the authoritative-in-CS copy of a job's payload hash.
func (c *Client) JobData(ctx context.Context, jobID string, out any) error {
	m, err := c.rdb.HGetAll(ctx, c.key("job_data", jobID)).Result()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "read job data", err)
	}
	if len(m) == 0 {
		return errs.New(errs.NotFound, "job data: "+jobID)
	}
	return decodeHash(m, out)
}

// PutJobData writes the job payload hash, one field per exported key in v.
func (c *Client) PutJobData(ctx context.Context, jobID string, v any) error {
	encoded, err := encodeHash(v)
	if err != nil {
		return errs.Wrap(errs.Internal, "encode job data", err)
	}
	if err := c.rdb.HSet(ctx, c.key("job_data", jobID), encoded).Err(); err != nil {
		return errs.Wrap(errs.Unavailable, "write job data", err)
	}
	return nil
}

// DeadlineStreamKey is the per-scaler sorted set of (job_id, deadline)
// projections the scaler's deadline pass scans.
func (c *Client) DeadlineStreamKey(scaler string) string {
	return c.key("deadlines", scaler)
}

// InsertDeadline idempotently projects a job into the deadline stream.
// Re-inserting the same (jobID, deadline) pair is a no-op by construction:
// ZADD with an unchanged score is itself idempotent.
func (c *Client) InsertDeadline(ctx context.Context, scaler, jobID string, deadline time.Time) error {
	err := c.rdb.ZAdd(ctx, c.DeadlineStreamKey(scaler), redis.Z{Score: float64(deadline.Unix()), Member: jobID}).Err()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "insert deadline", err)
	}
	return nil
}

// DueDeadlines returns job ids whose deadline has passed as of now.
func (c *Client) DueDeadlines(ctx context.Context, scaler string, now time.Time) ([]string, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, c.DeadlineStreamKey(scaler), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "read due deadlines", err)
	}
	return ids, nil
}

// DeadlineEntry is one member of the deadlines:{scaler} stream.
type DeadlineEntry struct {
	JobID    string
	Deadline time.Time
}

// DeadlinesAscending returns every projected deadline for one scaler in
// ascending score order. The scaler's deadline pass scans the whole
// stream each tick, not just entries already due.
func (c *Client) DeadlinesAscending(ctx context.Context, scaler string) ([]DeadlineEntry, error) {
	raw, err := c.rdb.ZRangeWithScores(ctx, c.DeadlineStreamKey(scaler), 0, -1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "scan deadline stream", err)
	}
	out := make([]DeadlineEntry, 0, len(raw))
	for _, z := range raw {
		id, _ := z.Member.(string)
		out = append(out, DeadlineEntry{JobID: id, Deadline: time.Unix(int64(z.Score), 0)})
	}
	return out, nil
}

// RemoveDeadline clears a job's deadline projection once it has been
// handled (re-spawned or completed).
func (c *Client) RemoveDeadline(ctx context.Context, scaler, jobID string) error {
	if err := c.rdb.ZRem(ctx, c.DeadlineStreamKey(scaler), jobID).Err(); err != nil {
		return errs.Wrap(errs.Unavailable, "remove deadline", err)
	}
	return nil
}

// EventQueueKey is the main pending-event sorted set for one event type.
func (c *Client) EventQueueKey(eventType string) string {
	return c.key("event-handler", "queue", eventType)
}

// InFlightQueueKey is the sorted set an event moves to while pop'd.
func (c *Client) InFlightQueueKey(eventType string) string {
	return c.key("event-handler", "in_flight_queue", eventType)
}

// InFlightMapKey is the hash of in-flight event id -> payload.
func (c *Client) InFlightMapKey(eventType string) string {
	return c.key("event-handler", "in_flight_map", eventType)
}

// PushEvent adds an event id to the main queue, scored by its timestamp.
func (c *Client) PushEvent(ctx context.Context, eventType, eventID string, payload []byte, ts time.Time) error {
	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, c.EventQueueKey(eventType), redis.Z{Score: float64(ts.UnixMilli()), Member: eventID})
	pipe.HSet(ctx, c.key("events", eventType, "payloads"), eventID, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "push event", err)
	}
	return nil
}

// PopEvents atomically moves up to n events from the main queue into the
// in-flight sorted set and in-flight map, returning them in
// non-decreasing timestamp order. Events younger than minAge at pop time
// are left in the main queue (covers MDS read-your-writes lag).
func (c *Client) PopEvents(ctx context.Context, eventType string, n int64, minAge time.Duration, now time.Time) ([]PoppedEvent, error) {
	queueKey := c.EventQueueKey(eventType)
	payloadKey := c.key("events", eventType, "payloads")

	// Fetch more than n so the age filter doesn't starve the batch when the
	// front of the queue is all too-young.
	raw, err := c.rdb.ZRangeWithScores(ctx, queueKey, 0, n*4-1).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "scan event queue", err)
	}

	cutoff := now.Add(-minAge).UnixMilli()
	popped := make([]PoppedEvent, 0, n)
	for _, z := range raw {
		if int64(len(popped)) >= n {
			break
		}
		if int64(z.Score) > cutoff {
			continue // too young; leave in the main queue
		}
		id, _ := z.Member.(string)
		popped = append(popped, PoppedEvent{ID: id, Timestamp: time.UnixMilli(int64(z.Score))})
	}
	if len(popped) == 0 {
		return nil, nil
	}

	pipe := c.rdb.TxPipeline()
	for _, ev := range popped {
		pipe.ZRem(ctx, queueKey, ev.ID)
		pipe.ZAdd(ctx, c.InFlightQueueKey(eventType), redis.Z{Score: float64(ev.Timestamp.UnixMilli()), Member: ev.ID})
		pipe.HSet(ctx, c.InFlightMapKey(eventType), ev.ID, ev.Timestamp.UnixMilli())
	}
	cmds, err := pipe.Exec(ctx)
	_ = cmds
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "move events in-flight", err)
	}

	ids := make([]string, len(popped))
	for i, ev := range popped {
		ids[i] = ev.ID
	}
	payloads, err := c.rdb.HMGet(ctx, payloadKey, ids...).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "fetch event payloads", err)
	}
	for i, p := range payloads {
		if s, ok := p.(string); ok {
			popped[i].Payload = []byte(s)
		}
	}
	return popped, nil
}

// PoppedEvent is one event returned by PopEvents.
type PoppedEvent struct {
	ID        string
	Timestamp time.Time
	Payload   []byte
}

// ClearEvents removes ids from both in-flight structures after successful
// processing.
func (c *Client) ClearEvents(ctx context.Context, eventType string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	pipe.ZRem(ctx, c.InFlightQueueKey(eventType), toAny(ids)...)
	pipe.HDel(ctx, c.InFlightMapKey(eventType), ids...)
	pipe.HDel(ctx, c.key("events", eventType, "payloads"), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "clear events", err)
	}
	return nil
}

// ResetAllEvents moves every in-flight event back to the main queue,
// preserving its original score. Called on handler/streamer start so a
// crash mid-batch retries rather than losing the event.
func (c *Client) ResetAllEvents(ctx context.Context, eventType string) error {
	inFlightKey := c.InFlightQueueKey(eventType)
	all, err := c.rdb.ZRangeWithScores(ctx, inFlightKey, 0, -1).Result()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "scan in-flight events", err)
	}
	if len(all) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for _, z := range all {
		pipe.ZAdd(ctx, c.EventQueueKey(eventType), redis.Z{Score: z.Score, Member: z.Member})
	}
	pipe.Del(ctx, inFlightKey)
	pipe.Del(ctx, c.InFlightMapKey(eventType))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "reset in-flight events", err)
	}
	return nil
}

// WorkersSetKey is the membership set of live worker names for one
// (cluster, node, scaler) tuple.
func (c *Client) WorkersSetKey(cluster, node, scalerKind string) string {
	return c.key("workers", cluster, node, scalerKind)
}

// RegisterWorker adds a worker name to its node's membership set and
// writes its data hash.
func (c *Client) RegisterWorker(ctx context.Context, cluster, node, scalerKind, name string, data any) error {
	encoded, err := encodeHash(data)
	if err != nil {
		return errs.Wrap(errs.Internal, "encode worker data", err)
	}
	pipe := c.rdb.TxPipeline()
	pipe.SAdd(ctx, c.WorkersSetKey(cluster, node, scalerKind), name)
	pipe.HSet(ctx, c.key("worker_data", name), encoded)
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "register worker", err)
	}
	return nil
}

// DeregisterWorker removes a worker from its membership set and drops its
// data hash.
func (c *Client) DeregisterWorker(ctx context.Context, cluster, node, scalerKind, name string) error {
	pipe := c.rdb.TxPipeline()
	pipe.SRem(ctx, c.WorkersSetKey(cluster, node, scalerKind), name)
	pipe.Del(ctx, c.key("worker_data", name))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "deregister worker", err)
	}
	return nil
}

// ListWorkers returns every worker name registered under one node.
func (c *Client) ListWorkers(ctx context.Context, cluster, node, scalerKind string) ([]string, error) {
	names, err := c.rdb.SMembers(ctx, c.WorkersSetKey(cluster, node, scalerKind)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list workers", err)
	}
	return names, nil
}

// IncrCensus increments the O(1) pagination counter for one MDS domain.
func (c *Client) IncrCensus(ctx context.Context, domain string, by int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, c.key("census", domain), by).Result()
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "increment census counter", err)
	}
	return n, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func encodeHash(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		out[k] = string(b)
	}
	return out, nil
}

func decodeHash(m map[string]string, out any) error {
	raw := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		raw[k] = json.RawMessage(v)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
