package cs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedInitiationSessionThenRemainingChunks(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	chunks := []InitiationChunk{
		{ID: "chunk-0000", Start: -100, End: 0},
		{ID: "chunk-0001", Start: 0, End: 100},
	}
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", chunks))

	remaining, err := c.RemainingChunks(ctx, "documents")
	require.NoError(t, err)
	assert.ElementsMatch(t, chunks, remaining)

	n, err := c.RemainingChunkCount(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSeedInitiationSessionIsIdempotentAcrossRestart(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	original := []InitiationChunk{{ID: "chunk-0000", Start: -100, End: 100}}
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", original))
	require.NoError(t, c.CompleteChunk(ctx, "documents", "chunk-0000"))

	// a restart re-derives the same chunk set and calls Seed again; since
	// the log still exists (even though tokens_remaining is now empty),
	// the existing session must not be reseeded underneath the caller.
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", original))

	n, err := c.RemainingChunkCount(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "reseeding a log that still exists must not resurrect a completed chunk")
}

func TestCompleteChunkRemovesFromRemainingOnly(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	chunks := []InitiationChunk{
		{ID: "chunk-0000", Start: -100, End: 0},
		{ID: "chunk-0001", Start: 0, End: 100},
	}
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", chunks))
	require.NoError(t, c.CompleteChunk(ctx, "documents", "chunk-0000"))

	remaining, err := c.RemainingChunks(ctx, "documents")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "chunk-0001", remaining[0].ID)
}

func TestDeleteInitiationSessionClearsBothKeys(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	chunks := []InitiationChunk{{ID: "chunk-0000", Start: -100, End: 100}}
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", chunks))
	require.NoError(t, c.DeleteInitiationSession(ctx, "documents"))

	remaining, err := c.RemainingChunks(ctx, "documents")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// a deleted session is indistinguishable from one never started, so
	// seeding after delete must create a fresh session, not resume.
	fresh := []InitiationChunk{{ID: "chunk-0000", Start: -5, End: 5}}
	require.NoError(t, c.SeedInitiationSession(ctx, "documents", fresh))
	remaining, err = c.RemainingChunks(ctx, "documents")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(-5), remaining[0].Start)
}
