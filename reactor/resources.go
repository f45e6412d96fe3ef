package reactor

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// Reserved capacity withheld from every node's advertised resources so the
// host OS, the reactor itself, and transient tmp files always have
// headroom.
const (
	reservedCPUMilli     = 1500 // 1.5 cores
	reservedMemoryMiB    = 2048 // 2 GiB
	reservedEphemeralMiB = 8192 // 8 GiB
)

// DiscoverResources samples CPU count, total memory, and free space on "/"
// and "/tmp", then subtracts the reserved host overhead to produce this
// node's advertised capacity.
func DiscoverResources() (model.Resources, error) {
	counts, err := cpu.Counts(true)
	if err != nil {
		return model.Resources{}, errs.Wrap(errs.Internal, "sample cpu count", err)
	}

	vmem, err := mem.VirtualMemory()
	if err != nil {
		return model.Resources{}, errs.Wrap(errs.Internal, "sample memory", err)
	}

	rootUsage, err := disk.Usage("/")
	if err != nil {
		return model.Resources{}, errs.Wrap(errs.Internal, "sample root disk usage", err)
	}
	tmpUsage, err := disk.Usage("/tmp")
	if err != nil {
		return model.Resources{}, errs.Wrap(errs.Internal, "sample tmp disk usage", err)
	}

	freeEphemeralMiB := int64(rootUsage.Free/1024/1024) + int64(tmpUsage.Free/1024/1024)

	sampled := model.Resources{
		CPUMilli:     int64(counts) * 1000,
		MemoryMiB:    int64(vmem.Total / 1024 / 1024),
		EphemeralMiB: freeEphemeralMiB,
		WorkerSlots:  int64(counts),
	}
	reserved := model.Resources{
		CPUMilli:     reservedCPUMilli,
		MemoryMiB:    reservedMemoryMiB,
		EphemeralMiB: reservedEphemeralMiB,
	}
	return sampled.Sub(reserved), nil
}
