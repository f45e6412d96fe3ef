package scaler

import (
	"time"

	"github.com/thorium-platform/thorium/model"
)

// Settings is the tick-scoped configuration a Scaler runs under, populated
// by the caller (cmd/thorium-scaler) from config.Config.SystemSettings.
// Kept as its own type here rather than importing config directly, so
// this package's only inputs are the stores and backends it actually
// drives.
type Settings struct {
	// Reserved capacity withheld from both pools on every node, for
	// non-Thorium workloads sharing the cluster.
	Reserved model.Resources

	// FairShareCap bounds the FairShare pool's total even when more
	// capacity is free; the zero value means "no cap, use whatever's
	// left after Reserved".
	FairShareCap model.Resources

	// ScaleDownGrace is the minimum time a worker must sit idle before the
	// scale-down pass deletes it; its DownScalable point is not checked.
	ScaleDownGrace time.Duration

	// NodeHealthTimeout is how stale a node's heartbeat may be before the
	// capacity-refresh step treats it as Unhealthy and excludes it from
	// the arena.
	NodeHealthTimeout time.Duration
}
