package kvm

import (
	"fmt"
	"time"
)

// LaunchResult is the staged outcome of spawning one worker VM, updated as
// the launch advances so a failed stage is visible in logs without needing
// to replay the whole sequence.
type LaunchResult struct {
	Success      bool      `json:"success"`
	WorkerName   string    `json:"worker_name"`
	IPAddress    string    `json:"ip_address,omitempty"`
	MACAddress   string    `json:"mac_address,omitempty"`
	OverlayPath  string    `json:"overlay_path"`
	CloudInitISO string    `json:"cloud_init_iso"`
	CreatedAt    time.Time `json:"created_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Stage        string    `json:"stage"`
	Image        string    `json:"image,omitempty"`
}

// VMInfo reports the current libvirt-observed state of one worker VM.
type VMInfo struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	IPAddress string    `json:"ip_address,omitempty"`
	IsActive  bool      `json:"is_active"`
	Observed  time.Time `json:"observed"`
}

// TerminateResult is the outcome of tearing down one worker VM.
type TerminateResult struct {
	Success      bool      `json:"success"`
	WorkerName   string    `json:"worker_name"`
	TerminatedAt time.Time `json:"terminated_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Stage        string    `json:"stage"`
	CleanedISO   bool      `json:"cleaned_iso,omitempty"`
	CleanedOverlay bool    `json:"cleaned_overlay,omitempty"`
}

// Domain state constants, mirroring libvirt's virDomainState enum.
const (
	DomainNoState int32 = 0
	DomainRunning int32 = 1
	DomainBlocked int32 = 2
	DomainPaused  int32 = 3
	DomainShutoff int32 = 5
	DomainCrashed int32 = 6
)

// StateToString converts a libvirt domain state into a readable string, used
// when reporting Node/Worker health back to the reactor's poll loop.
func StateToString(state int32) string {
	switch state {
	case DomainRunning:
		return "running"
	case DomainPaused:
		return "paused"
	case DomainShutoff:
		return "shut off"
	case DomainCrashed:
		return "crashed"
	default:
		return fmt.Sprintf("unknown (%d)", state)
	}
}
