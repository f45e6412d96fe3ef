//go:build !windows

package main

import (
	"fmt"
	"strings"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/reactor"
	"github.com/thorium-platform/thorium/reactor/launchers/baremetal"
	"github.com/thorium-platform/thorium/reactor/launchers/kvm"
)

// newLauncher resolves --backend to the model.Scaler it reconciles for and
// the Launcher that drives its worker processes/domains. The windows
// backend only exists in backend_windows.go, since reactor/launchers/windows
// is itself windows-only.
func newLauncher(backend string) (model.Scaler, reactor.Launcher, error) {
	cmdParts := strings.Fields(agentCommand)

	switch model.Scaler(backend) {
	case model.ScalerBareMetal:
		return model.ScalerBareMetal, baremetal.New(baremetal.Config{AgentCommand: cmdParts}), nil
	case model.ScalerKVM:
		return model.ScalerKVM, kvm.NewAdapter(kvm.Config{
			LibvirtSocket: libvirtSocket,
			BaseImageDir:  baseImageDir,
			OverlayDir:    overlayDir,
			CloudInitDir:  cloudInitDir,
			NetworkName:   networkName,
			SSHPublicKey:  sshPublicKey,
			AgentCommand:  cmdParts,
		}), nil
	default:
		return "", nil, fmt.Errorf("unsupported reactor backend %q on this platform", backend)
	}
}
