package kvm

import (
	"net"

	libvirt "github.com/digitalocean/go-libvirt"

	"github.com/thorium-platform/thorium/errs"
)

// unixDialer connects to the libvirt daemon over its Unix domain socket,
// the only transport the reactor uses (no remote libvirtd over TCP/TLS).
type unixDialer struct {
	path string
}

func (d *unixDialer) Dial() (net.Conn, error) {
	return net.Dial("unix", d.path)
}

// connect opens a libvirt session against socketPath. Callers must
// disconnect when done.
func connect(socketPath string) (*libvirt.Libvirt, error) {
	vir := libvirt.NewWithDialer(&unixDialer{path: socketPath})
	if err := vir.Connect(); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "connect to libvirt daemon", err)
	}
	return vir, nil
}

func disconnect(vir *libvirt.Libvirt) {
	if vir != nil {
		_ = vir.Disconnect()
	}
}
