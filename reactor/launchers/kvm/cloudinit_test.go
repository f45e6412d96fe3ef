package kvm

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isoToolAvailable() bool {
	if _, err := exec.LookPath("genisoimage"); err == nil {
		return true
	}
	_, err := exec.LookPath("mkisofs")
	return err == nil
}

func TestCreateCloudInitISOEmbedsAgentInvocation(t *testing.T) {
	if !isoToolAvailable() {
		t.Skip("genisoimage/mkisofs not available")
	}

	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "worker-cloudinit.iso")

	cfg := cloudInitConfig{
		WorkerName:   "worker-01",
		SSHPublicKey: "ssh-ed25519 AAAAC3 test@example.com",
		AgentCommand: []string{"/usr/local/bin/thorium-agent", "run"},
		Env:          map[string]string{"THORIUM_WORKER_NAME": "worker-01", "THORIUM_CLUSTER": "c1"},
	}

	err := createCloudInitISO(cfg, outputPath)
	require.NoError(t, err)

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestCreateCloudInitISOFailsOnInvalidOutputDir(t *testing.T) {
	cfg := cloudInitConfig{WorkerName: "worker-02", SSHPublicKey: "ssh-ed25519 AAAA"}
	err := createCloudInitISO(cfg, "/nonexistent/directory/tree/worker.iso")
	assert.Error(t, err)
}
