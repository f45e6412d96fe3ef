package cs

import (
	"context"
	"fmt"

	"github.com/thorium-platform/thorium/errs"
)

// InitiationLogKey is the hash recording the chunk boundaries for one
// search-streamer initiation session, keyed by chunk id.
func (c *Client) InitiationLogKey(kind string) string {
	return c.key("stream", "init", kind, "log")
}

// InitiationTokensRemainingKey is the set of chunk ids not yet reported
// complete for one initiation session.
func (c *Client) InitiationTokensRemainingKey(kind string) string {
	return c.key("stream", "init", kind, "tokens_remaining")
}

// InitiationChunk is one token-range chunk of an initiation session, as
// persisted in the session log.
type InitiationChunk struct {
	ID    string
	Start int64
	End   int64
}

// SeedInitiationSession writes the full chunk set for a new session and
// marks every chunk outstanding, but only if no session is already in
// progress (the log is non-empty): a restart resumes the existing
// session instead of starting a new one.
func (c *Client) SeedInitiationSession(ctx context.Context, kind string, chunks []InitiationChunk) error {
	logKey := c.InitiationLogKey(kind)
	n, err := c.rdb.HLen(ctx, logKey).Result()
	if err != nil {
		return errs.Wrap(errs.Unavailable, "check initiation session log", err)
	}
	if n > 0 {
		return nil // resume: a session is already in flight
	}

	pipe := c.rdb.TxPipeline()
	remainingKey := c.InitiationTokensRemainingKey(kind)
	for _, ch := range chunks {
		encoded := fmt.Sprintf("%d,%d", ch.Start, ch.End)
		pipe.HSet(ctx, logKey, ch.ID, encoded)
		pipe.SAdd(ctx, remainingKey, ch.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "seed initiation session", err)
	}
	return nil
}

// RemainingChunks returns the not-yet-complete chunks of the current
// initiation session for kind, resolved from the session log in no
// particular order: any order is acceptable since chunks are processed
// independently.
func (c *Client) RemainingChunks(ctx context.Context, kind string) ([]InitiationChunk, error) {
	ids, err := c.rdb.SMembers(ctx, c.InitiationTokensRemainingKey(kind)).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list remaining initiation chunks", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := c.rdb.HMGet(ctx, c.InitiationLogKey(kind), ids...).Result()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "read initiation session log", err)
	}

	out := make([]InitiationChunk, 0, len(ids))
	for i, id := range ids {
		s, ok := raw[i].(string)
		if !ok {
			continue // log entry missing; chunk was never seeded or log was cleared underneath us
		}
		var start, end int64
		if _, err := fmt.Sscanf(s, "%d,%d", &start, &end); err != nil {
			return nil, errs.Wrap(errs.Internal, "parse initiation chunk bounds: "+s, err)
		}
		out = append(out, InitiationChunk{ID: id, Start: start, End: end})
	}
	return out, nil
}

// CompleteChunk removes a chunk from the remaining set once its token
// range has been fully reindexed. It does not touch the log, so the
// chunk's bounds stay available for diagnostics until the session itself
// is deleted.
func (c *Client) CompleteChunk(ctx context.Context, kind, chunkID string) error {
	if err := c.rdb.SRem(ctx, c.InitiationTokensRemainingKey(kind), chunkID).Err(); err != nil {
		return errs.Wrap(errs.Unavailable, "complete initiation chunk", err)
	}
	return nil
}

// RemainingChunkCount reports how many chunks are still outstanding,
// without fetching their bounds: used for the InitiationChunksRemaining
// gauge.
func (c *Client) RemainingChunkCount(ctx context.Context, kind string) (int64, error) {
	n, err := c.rdb.SCard(ctx, c.InitiationTokensRemainingKey(kind)).Result()
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "count remaining initiation chunks", err)
	}
	return n, nil
}

// DeleteInitiationSession removes the session log and the remaining-tokens
// set in one transaction. It deletes both keys unconditionally and does not
// check whether any chunk is still remaining; searchstreamer's Initiator.Run
// calls it only once RemainingChunks returns none.
func (c *Client) DeleteInitiationSession(ctx context.Context, kind string) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, c.InitiationLogKey(kind))
	pipe.Del(ctx, c.InitiationTokensRemainingKey(kind))
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Wrap(errs.Unavailable, "delete initiation session", err)
	}
	return nil
}
