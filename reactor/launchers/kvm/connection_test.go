package kvm

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnixDialerDialsTestSocket(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := tmpDir + "/test.sock"

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("failed to create test socket: %v", err)
	}
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	time.Sleep(10 * time.Millisecond)

	conn, err := (&unixDialer{path: socketPath}).Dial()
	assert.NoError(t, err)
	assert.NotNil(t, conn)
	conn.Close()
}

func TestUnixDialerRejectsMissingSocket(t *testing.T) {
	_, err := (&unixDialer{path: "/tmp/nonexistent-thorium-test.sock"}).Dial()
	assert.Error(t, err)
}

func TestConnectRejectsInvalidSocket(t *testing.T) {
	_, err := connect("/tmp/invalid-libvirt-socket-for-test.sock")
	assert.Error(t, err)
}

func TestDisconnectHandlesNil(t *testing.T) {
	assert.NotPanics(t, func() { disconnect(nil) })
}

func TestConnectToRealLibvirtIfAvailable(t *testing.T) {
	socketPath := "/var/run/libvirt/libvirt-sock"
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Skip("no libvirt socket available")
	}

	vir, err := connect(socketPath)
	if err != nil {
		t.Skipf("could not connect to libvirt: %v", err)
	}
	assert.NotNil(t, vir)
	disconnect(vir)
}
