//go:build !windows

package baremetal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-platform/thorium/model"
)

func TestLaunchRejectsMissingAgentCommand(t *testing.T) {
	l := New(Config{})
	out, err := l.Launch(context.Background(), model.Worker{Name: "w1"}, model.Image{})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.ErrorMessage, "no agent command")
}

func TestLaunchAndTerminateRoundTrip(t *testing.T) {
	l := New(Config{
		AgentCommand:  []string{"sleep", "30"},
		CgroupRoot:    t.TempDir(),
		WorkDir:       t.TempDir(),
		ShutdownGrace: 2 * time.Second,
	})

	worker := model.Worker{Name: "rt-worker", Group: "g", Pipeline: "p", Stage: "s"}
	out, err := l.Launch(context.Background(), worker, model.Image{Resources: model.Resources{CPUMilli: 500, MemoryMiB: 256}})
	require.NoError(t, err)
	require.True(t, out.Success)

	listed, err := l.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rt-worker", listed[0].Name)
	assert.True(t, listed[0].Active)

	term, err := l.Terminate(context.Background(), "rt-worker", true)
	require.NoError(t, err)
	assert.True(t, term.Success)

	listed, err = l.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestLaunchIsIdempotentForSameWorkerName(t *testing.T) {
	l := New(Config{
		AgentCommand: []string{"sleep", "30"},
		CgroupRoot:   t.TempDir(),
		WorkDir:      t.TempDir(),
	})
	worker := model.Worker{Name: "dup-worker"}

	out1, err := l.Launch(context.Background(), worker, model.Image{})
	require.NoError(t, err)
	require.True(t, out1.Success)

	out2, err := l.Launch(context.Background(), worker, model.Image{})
	require.NoError(t, err)
	assert.True(t, out2.Success)
	assert.Equal(t, "already_running", out2.Stage)

	_, _ = l.Terminate(context.Background(), "dup-worker", true)
}
