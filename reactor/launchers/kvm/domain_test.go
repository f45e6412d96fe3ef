package kvm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thorium-platform/thorium/model"
)

func TestLaunchRejectsInvalidWorkerName(t *testing.T) {
	l := New(Config{LibvirtSocket: "/nonexistent"})
	result, err := l.Launch(context.Background(), model.Worker{Name: "123-invalid"}, model.Image{Image: "ubuntu"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "initialization", result.Stage)
	assert.Contains(t, result.ErrorMessage, "invalid worker name")
}

func TestLaunchFailsWhenBaseImageMissing(t *testing.T) {
	tmpDir := t.TempDir()
	l := New(Config{LibvirtSocket: "/nonexistent", BaseImageDir: tmpDir})

	result, err := l.Launch(context.Background(), model.Worker{Name: "valid-worker"}, model.Image{Image: "missing-image"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "base image not found")
}

func TestLaunchGetsPastInitializationThenFails(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "base")
	overlayDir := filepath.Join(tmpDir, "overlay")
	isoDir := filepath.Join(tmpDir, "iso")
	for _, d := range []string{baseDir, overlayDir, isoDir} {
		require.NoError(t, os.MkdirAll(d, 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(baseDir, "ubuntu.qcow2"), []byte("fake base image"), 0644))

	l := New(Config{
		LibvirtSocket: "/tmp/nonexistent-libvirt-socket-for-test.sock",
		BaseImageDir:  baseDir,
		OverlayDir:    overlayDir,
		CloudInitDir:  isoDir,
		SSHPublicKey:  "ssh-ed25519 AAAA test@example.com",
		AgentCommand:  []string{"/usr/local/bin/thorium-agent", "run"},
	})

	result, err := l.Launch(context.Background(), model.Worker{Name: "valid-worker"}, model.Image{Image: "ubuntu"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	// The base image exists, so the launch gets past initialization; it
	// then fails at whichever later stage the test host cannot complete
	// (overlay creation without qemu-img, cloud-init without an ISO tool,
	// or the libvirt connection, whose socket does not exist).
	assert.NotEqual(t, "initialization", result.Stage)
}

func TestTerminateFailsWhenLibvirtUnreachable(t *testing.T) {
	l := New(Config{LibvirtSocket: "/tmp/nonexistent-libvirt-socket-for-test.sock"})
	result, err := l.Terminate(context.Background(), "some-worker", false)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "initialization", result.Stage)
}

func TestListFailsWhenLibvirtUnreachable(t *testing.T) {
	l := New(Config{LibvirtSocket: "/tmp/nonexistent-libvirt-socket-for-test.sock"})
	_, err := l.List(context.Background())
	assert.Error(t, err)
}

func TestAgentEnvMergesWorkerAndImage(t *testing.T) {
	worker := model.Worker{Name: "w1", Cluster: "c1", Node: "n1", Group: "g1", Pipeline: "p1", Stage: "s1", Pool: model.Pool("fair")}
	image := model.Image{Env: map[string]string{"FOO": "bar"}}

	env := agentEnv(worker, image)
	assert.Equal(t, "w1", env["THORIUM_WORKER_NAME"])
	assert.Equal(t, "c1", env["THORIUM_CLUSTER"])
	assert.Equal(t, "bar", env["FOO"])
}
