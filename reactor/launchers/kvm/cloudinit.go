package kvm

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thorium-platform/thorium/errs"
)

// cloudInitConfig holds the parameters needed to stamp a worker VM's
// cloud-init user-data: its SSH access and the thorium-agent invocation
// that makes it a C10 agent once it boots.
type cloudInitConfig struct {
	WorkerName   string
	SSHPublicKey string
	AgentCommand []string
	Env          map[string]string
}

// createCloudInitISO renders cloud-init user-data/meta-data and packs them
// into an ISO9660 volume libvirt attaches as a cdrom.
func createCloudInitISO(cfg cloudInitConfig, outputPath string) error {
	envLines := make([]string, 0, len(cfg.Env))
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		envLines = append(envLines, fmt.Sprintf("export %s=%q", k, cfg.Env[k]))
	}

	runCmd := strings.Join(cfg.AgentCommand, " ")
	userData := fmt.Sprintf(`#cloud-config
hostname: %s
ssh_authorized_keys:
  - %s
write_files:
  - path: /etc/thorium/agent.env
    content: |
      %s
runcmd:
  - [ bash, -c, "source /etc/thorium/agent.env && %s" ]
`, cfg.WorkerName, cfg.SSHPublicKey, strings.Join(envLines, "\n      "), runCmd)

	metaData := fmt.Sprintf("instance-id: %s\nlocal-hostname: %s\n", cfg.WorkerName, cfg.WorkerName)

	tmpdir := filepath.Join(os.TempDir(), "thorium-cloudinit-"+cfg.WorkerName)
	if err := os.MkdirAll(tmpdir, 0755); err != nil {
		return errs.Wrap(errs.Internal, "make cloud-init staging dir", err)
	}
	defer os.RemoveAll(tmpdir)

	userFile := filepath.Join(tmpdir, "user-data")
	metaFile := filepath.Join(tmpdir, "meta-data")
	if err := os.WriteFile(userFile, []byte(userData), 0644); err != nil {
		return errs.Wrap(errs.Internal, "write user-data", err)
	}
	if err := os.WriteFile(metaFile, []byte(metaData), 0644); err != nil {
		return errs.Wrap(errs.Internal, "write meta-data", err)
	}

	cmd := exec.Command("genisoimage", "-output", outputPath, "-volid", "cidata", "-joliet", "-rock", userFile, metaFile)
	if err := cmd.Run(); err != nil {
		fallback := exec.Command("mkisofs", "-output", outputPath, "-volid", "cidata", "-joliet", "-rock", userFile, metaFile)
		if err2 := fallback.Run(); err2 != nil {
			return errs.Wrap(errs.Internal, "build cloud-init iso", fmt.Errorf("genisoimage: %w; mkisofs: %v", err, err2))
		}
	}
	return nil
}
