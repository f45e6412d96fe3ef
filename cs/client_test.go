package cs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewClient(context.Background(), Config{
		RedisURL:  "redis://" + mr.Addr(),
		Namespace: "thorium-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestJobQueueRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	require.NoError(t, c.EnqueueJob(ctx, "g", "p", "s", "u", "Created", "job-1", now.Add(time.Minute)))
	require.NoError(t, c.EnqueueJob(ctx, "g", "p", "s", "u", "Created", "job-2", now.Add(2*time.Minute)))

	depth, err := c.QueueDepth(ctx, "g", "p", "s", "u", "Created")
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	claimed, err := c.ClaimLowestDeadline(ctx, "g", "p", "s", "u", "Created")
	require.NoError(t, err)
	assert.Equal(t, "job-1", claimed)

	depth, err = c.QueueDepth(ctx, "g", "p", "s", "u", "Created")
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestClaimOnEmptyQueueReturnsEmptyString(t *testing.T) {
	c, _ := newTestClient(t)
	claimed, err := c.ClaimLowestDeadline(context.Background(), "g", "p", "s", "u", "Created")
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestDeadlineInsertIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	deadline := time.Now().Add(-time.Minute).Truncate(time.Second)

	require.NoError(t, c.InsertDeadline(ctx, "k8s", "job-1", deadline))
	require.NoError(t, c.InsertDeadline(ctx, "k8s", "job-1", deadline))

	due, err := c.DueDeadlines(ctx, "k8s", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, due)
}

func TestEventPopClearReset(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	require.NoError(t, c.PushEvent(ctx, "NewSample", "ev-1", []byte(`{"a":1}`), old))
	require.NoError(t, c.PushEvent(ctx, "NewSample", "ev-2", []byte(`{"a":2}`), old.Add(time.Second)))

	// A brand-new event should be filtered by the in-flight-lag window.
	require.NoError(t, c.PushEvent(ctx, "NewSample", "ev-new", []byte(`{}`), time.Now()))

	popped, err := c.PopEvents(ctx, "NewSample", 10, 3*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, popped, 2)
	assert.Equal(t, "ev-1", popped[0].ID)
	assert.Equal(t, "ev-2", popped[1].ID)
	assert.Equal(t, []byte(`{"a":1}`), popped[0].Payload)

	require.NoError(t, c.ClearEvents(ctx, "NewSample", []string{"ev-1", "ev-2"}))

	// reset_all should only move what remains in-flight (nothing, here).
	require.NoError(t, c.ResetAllEvents(ctx, "NewSample"))

	remaining, err := c.PopEvents(ctx, "NewSample", 10, 0, time.Now())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "ev-new", remaining[0].ID)
}

func TestResetAllEventsRestoresInFlight(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, c.PushEvent(ctx, "NewTags", "ev-1", []byte(`{}`), old))
	popped, err := c.PopEvents(ctx, "NewTags", 10, 3*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, popped, 1)

	// Simulate a crash: nothing calls ClearEvents. reset_all must put it back.
	require.NoError(t, c.ResetAllEvents(ctx, "NewTags"))

	again, err := c.PopEvents(ctx, "NewTags", 10, 3*time.Second, time.Now())
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "ev-1", again[0].ID)
}

func TestWorkerRegistration(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	type workerData struct {
		Pool string `json:"pool"`
	}
	require.NoError(t, c.RegisterWorker(ctx, "cluster-a", "node-1", "K8s", "worker-1", workerData{Pool: "FairShare"}))

	names, err := c.ListWorkers(ctx, "cluster-a", "node-1", "K8s")
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1"}, names)

	require.NoError(t, c.DeregisterWorker(ctx, "cluster-a", "node-1", "K8s", "worker-1"))
	names, err = c.ListWorkers(ctx, "cluster-a", "node-1", "K8s")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCensusCounterIncrements(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	n, err := c.IncrCensus(ctx, "tags", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = c.IncrCensus(ctx, "tags", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestJobDataRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	type payload struct {
		Stage  string `json:"stage"`
		Status string `json:"status"`
	}
	require.NoError(t, c.PutJobData(ctx, "job-1", payload{Stage: "extract", Status: "Created"}))

	var out payload
	require.NoError(t, c.JobData(ctx, "job-1", &out))
	assert.Equal(t, "extract", out.Stage)
	assert.Equal(t, "Created", out.Status)
}

func TestJobDataMissingIsNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	var out map[string]string
	err := c.JobData(context.Background(), "nope", &out)
	require.Error(t, err)
}
