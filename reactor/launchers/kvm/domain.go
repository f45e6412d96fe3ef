// Package kvm implements the reactor's libvirt launch backend: it turns a
// scaler Spawn requisition for one Worker/Image pair into a running KVM
// domain booted from a qcow2 overlay and cloud-init seed ISO.
package kvm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	libvirt "github.com/digitalocean/go-libvirt"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// Config carries the host-local settings every launch/terminate call needs:
// where base images and overlays live, which libvirt network to attach to,
// and how to reach this reactor's agent binary once the VM is up.
type Config struct {
	LibvirtSocket string
	BaseImageDir  string // qcow2 base images, one per Image.Image name
	OverlayDir    string // per-worker qcow2 overlays
	CloudInitDir  string // per-worker cloud-init seed ISOs
	NetworkName   string
	SSHPublicKey  string
	AgentCommand  []string // e.g. ["/usr/local/bin/thorium-agent", "run"]
	IPWaitRounds  int      // attempts, 3s apart, before giving up on DHCP
}

// Launcher drives libvirt domain lifecycle for KVM-backed workers.
type Launcher struct {
	cfg Config
}

func New(cfg Config) *Launcher {
	if cfg.NetworkName == "" {
		cfg.NetworkName = "default"
	}
	if cfg.IPWaitRounds == 0 {
		cfg.IPWaitRounds = 40
	}
	return &Launcher{cfg: cfg}
}

// Launch spawns a VM for worker running image, returning a staged result
// whose Stage field reflects how far the launch progressed before any
// failure. It never returns a Go error for launch-local failures (bad
// image, libvirt define failure, DHCP timeout): those are reported through
// LaunchResult.ErrorMessage so the reactor's tick loop can record a failed
// Spawned entry without crashing. It returns an error only for setup
// problems the caller must not retry blindly (nil context).
func (l *Launcher) Launch(ctx context.Context, worker model.Worker, image model.Image) (*LaunchResult, error) {
	if ctx == nil {
		return nil, errs.New(errs.Validation, "launch requires a context")
	}

	result := &LaunchResult{
		WorkerName: worker.Name,
		Image:      image.Image,
		CreatedAt:  time.Now(),
		Stage:      "initialization",
	}

	if !IsValidDomainName(worker.Name) {
		result.ErrorMessage = fmt.Sprintf("invalid worker name %q for a libvirt domain", worker.Name)
		return result, nil
	}

	basePath := filepath.Join(l.cfg.BaseImageDir, image.Image+".qcow2")
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		result.ErrorMessage = fmt.Sprintf("base image not found: %s", basePath)
		return result, nil
	}

	result.Stage = "creating_overlay"
	overlayPath := filepath.Join(l.cfg.OverlayDir, worker.Name+".qcow2")
	if err := createOverlay(basePath, overlayPath); err != nil {
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.OverlayPath = overlayPath

	result.Stage = "preparing_cloud_init"
	isoPath := filepath.Join(l.cfg.CloudInitDir, worker.Name+"-cloudinit.iso")
	if err := createCloudInitISO(cloudInitConfig{
		WorkerName:   worker.Name,
		SSHPublicKey: l.cfg.SSHPublicKey,
		AgentCommand: l.cfg.AgentCommand,
		Env:          agentEnv(worker, image),
	}, isoPath); err != nil {
		result.ErrorMessage = err.Error()
		return result, nil
	}
	result.CloudInitISO = isoPath

	vir, err := connect(l.cfg.LibvirtSocket)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, nil
	}
	defer disconnect(vir)
	result.Stage = "connected_to_libvirt"

	if dom, err := vir.DomainLookupByName(worker.Name); err == nil {
		_ = vir.DomainDestroy(dom)
		_ = vir.DomainUndefine(dom)
	}

	result.Stage = "defining_domain"
	cpuMilli := image.Resources.CPUMilli
	vcpus := cpuMilli / 1000
	if vcpus < 1 {
		vcpus = 1
	}
	domainXML := generateDomainXML(domainXMLConfig{
		Name:         worker.Name,
		MemoryKiB:    image.Resources.MemoryMiB * 1024,
		VCPUs:        vcpus,
		OverlayPath:  overlayPath,
		CloudInitISO: isoPath,
		NetworkName:  l.cfg.NetworkName,
	})

	dom, err := vir.DomainDefineXML(domainXML)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("define domain: %v", err)
		return result, nil
	}

	result.Stage = "starting_domain"
	if err := vir.DomainCreate(dom); err != nil {
		result.ErrorMessage = fmt.Sprintf("start domain: %v", err)
		return result, nil
	}

	result.Stage = "getting_network_info"
	domainXMLStr, err := vir.DomainGetXMLDesc(dom, 0)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("fetch domain xml: %v", err)
		return result, nil
	}
	mac := extractMACFromXML(domainXMLStr)
	if mac == "" {
		result.ErrorMessage = "could not extract MAC address from domain"
		return result, nil
	}
	result.MACAddress = mac

	result.Stage = "waiting_for_ip"
	ip := waitForIP(vir, dom, l.cfg.NetworkName, mac, l.cfg.IPWaitRounds)
	if ip == "" {
		result.Stage = "ip_detection_failed"
		result.ErrorMessage = fmt.Sprintf("no DHCP lease observed for MAC %s", mac)
		return result, nil
	}

	result.Stage = "completed"
	result.Success = true
	result.IPAddress = ip
	return result, nil
}

// Terminate destroys and undefines a worker's domain, optionally cleaning
// up its overlay disk and cloud-init ISO.
func (l *Launcher) Terminate(ctx context.Context, workerName string, cleanupFiles bool) (*TerminateResult, error) {
	if ctx == nil {
		return nil, errs.New(errs.Validation, "terminate requires a context")
	}

	result := &TerminateResult{WorkerName: workerName, TerminatedAt: time.Now(), Stage: "initialization"}

	vir, err := connect(l.cfg.LibvirtSocket)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, nil
	}
	defer disconnect(vir)
	result.Stage = "connected_to_libvirt"

	dom, err := vir.DomainLookupByName(workerName)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("domain %q not found: %v", workerName, err)
		return result, nil
	}

	state, _, err := vir.DomainGetState(dom, 0)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("get domain state: %v", err)
		return result, nil
	}
	if libvirt.DomainState(state) == libvirt.DomainRunning || libvirt.DomainState(state) == libvirt.DomainPaused {
		result.Stage = "destroying_domain"
		if err := vir.DomainDestroy(dom); err != nil {
			result.ErrorMessage = fmt.Sprintf("destroy domain: %v", err)
			return result, nil
		}
	}

	result.Stage = "undefining_domain"
	if err := vir.DomainUndefine(dom); err != nil {
		result.ErrorMessage = fmt.Sprintf("undefine domain: %v", err)
		return result, nil
	}

	if cleanupFiles {
		result.Stage = "cleanup"
		if err := os.Remove(filepath.Join(l.cfg.OverlayDir, workerName+".qcow2")); err == nil {
			result.CleanedOverlay = true
		}
		if err := os.Remove(filepath.Join(l.cfg.CloudInitDir, workerName+"-cloudinit.iso")); err == nil {
			result.CleanedISO = true
		}
	}

	result.Success = true
	result.Stage = "completed"
	return result, nil
}

// List reports the reactor-observed state of every worker VM, used by the
// reactor's per-tick poll to reconcile libvirt reality against mds.Worker
// rows.
func (l *Launcher) List(ctx context.Context) ([]VMInfo, error) {
	if ctx == nil {
		return nil, errs.New(errs.Validation, "list requires a context")
	}

	vir, err := connect(l.cfg.LibvirtSocket)
	if err != nil {
		return nil, err
	}
	defer disconnect(vir)

	domains, _, err := vir.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "list libvirt domains", err)
	}

	_, netErr := vir.NetworkLookupByName(l.cfg.NetworkName)
	networkExists := netErr == nil

	vms := make([]VMInfo, 0, len(domains))
	for _, dom := range domains {
		state, _, err := vir.DomainGetState(dom, 0)
		if err != nil {
			continue
		}
		isActive := state == DomainRunning

		var ip string
		if isActive && networkExists {
			xmlDesc, _ := vir.DomainGetXMLDesc(dom, 0)
			mac := extractMACFromXML(xmlDesc)
			ip, _ = dhcpLeaseFor(vir, l.cfg.NetworkName, mac)
		}

		vms = append(vms, VMInfo{
			Name:      dom.Name,
			State:     StateToString(state),
			IPAddress: ip,
			IsActive:  isActive,
			Observed:  time.Now(),
		})
	}
	return vms, nil
}

// createOverlay creates a qcow2 overlay disk backed by the image's base
// disk, so each worker gets its own writable layer without copying the
// (often multi-gigabyte) base image.
func createOverlay(basePath, overlayPath string) error {
	cmd := exec.Command("qemu-img", "create", "-f", "qcow2", "-F", "qcow2", "-b", basePath, overlayPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errs.Wrap(errs.Internal, "create qcow2 overlay", fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err))
	}
	return nil
}

// agentEnv builds the environment the in-VM thorium-agent needs to
// register itself and claim jobs for this worker/image pairing.
func agentEnv(worker model.Worker, image model.Image) map[string]string {
	env := map[string]string{
		"THORIUM_WORKER_NAME": worker.Name,
		"THORIUM_CLUSTER":     worker.Cluster,
		"THORIUM_NODE":        worker.Node,
		"THORIUM_GROUP":       worker.Group,
		"THORIUM_PIPELINE":    worker.Pipeline,
		"THORIUM_STAGE":       worker.Stage,
		"THORIUM_USER":        worker.User,
		"THORIUM_POOL":        string(worker.Pool),
	}
	for k, v := range image.Env {
		env[k] = v
	}
	return env
}
