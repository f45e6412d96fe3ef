package baremetal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/thorium-platform/thorium/model"
)

// cgroupPeriodMicros is the cfs period cgroup v2's cpu.max uses; the quota
// half of "quota period" is derived from the image's CPUMilli.
const cgroupPeriodMicros = 100000

// createCgroup makes a cgroup v2 leaf directory for worker and writes its
// cpu.max and memory.max controllers from resources, mirroring the resource
// confinement kvm/domain.go achieves via libvirt domain XML instead.
func createCgroup(root, worker string, resources model.Resources) (string, error) {
	dir := filepath.Join(root, worker)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cgroup dir: %w", err)
	}

	if resources.CPUMilli > 0 {
		quota := resources.CPUMilli * cgroupPeriodMicros / 1000
		if err := os.WriteFile(filepath.Join(dir, "cpu.max"), []byte(fmt.Sprintf("%d %d", quota, cgroupPeriodMicros)), 0o644); err != nil {
			return dir, fmt.Errorf("write cpu.max: %w", err)
		}
	}
	if resources.MemoryMiB > 0 {
		bytes := resources.MemoryMiB * 1024 * 1024
		if err := os.WriteFile(filepath.Join(dir, "memory.max"), []byte(fmt.Sprintf("%d", bytes)), 0o644); err != nil {
			return dir, fmt.Errorf("write memory.max: %w", err)
		}
	}
	return dir, nil
}

// attachProcess moves pid into the cgroup at dir by writing cgroup.procs,
// the standard cgroup v2 join mechanism.
func attachProcess(dir string, pid int) error {
	return os.WriteFile(filepath.Join(dir, "cgroup.procs"), []byte(fmt.Sprintf("%d", pid)), 0o644)
}

func removeCgroup(dir string) error {
	return os.Remove(dir)
}
