// Package baremetal implements the reactor's bare-metal launch backend: a
// worker is a child process of the reactor, confined to a cgroup v2 slice
// sized from the Image's Resources. Grounded on kvm/domain.go's
// staged-LaunchResult shape, generalized from libvirt domain lifecycle to
// os/exec process lifecycle plus golang.org/x/sys/unix process-group
// signalling.
package baremetal

import "time"

// Config carries the host-local settings every launch/terminate call needs.
type Config struct {
	// AgentCommand is the binary (plus leading args) to exec for every
	// worker, e.g. ["/usr/local/bin/thorium-agent", "run"].
	AgentCommand []string

	// CgroupRoot is the cgroup v2 mount point workers are confined under,
	// one child directory per worker name. Defaults to
	// "/sys/fs/cgroup/thorium".
	CgroupRoot string

	// WorkDir is the parent directory each worker's process runs with as
	// its working directory (a fresh subdirectory per worker). Defaults to
	// os.TempDir().
	WorkDir string

	// ShutdownGrace is how long Terminate waits after SIGTERM before
	// escalating to SIGKILL.
	ShutdownGrace time.Duration
}

func (c Config) cgroupRoot() string {
	if c.CgroupRoot != "" {
		return c.CgroupRoot
	}
	return "/sys/fs/cgroup/thorium"
}

func (c Config) shutdownGrace() time.Duration {
	if c.ShutdownGrace > 0 {
		return c.ShutdownGrace
	}
	return 10 * time.Second
}
