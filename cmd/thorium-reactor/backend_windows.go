//go:build windows

package main

import (
	"fmt"
	"strings"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/reactor"
	"github.com/thorium-platform/thorium/reactor/launchers/windows"
)

// newLauncher resolves --backend to the model.Scaler it reconciles for and
// the Launcher that drives its worker processes. BareMetal/KVM only exist
// in backend_unix.go: the bare-metal launcher needs cgroup v2, and libvirt
// isn't a supported hypervisor target on this platform.
func newLauncher(backend string) (model.Scaler, reactor.Launcher, error) {
	cmdParts := strings.Fields(agentCommand)

	switch model.Scaler(backend) {
	case model.ScalerWindows:
		return model.ScalerWindows, windows.New(windows.Config{AgentCommand: cmdParts}), nil
	default:
		return "", nil, fmt.Errorf("unsupported reactor backend %q on this platform", backend)
	}
}
