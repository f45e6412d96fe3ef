//go:build !windows

package baremetal

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/reactor"
)

// process tracks one running worker's OS process and cgroup directory.
type process struct {
	cmd       *exec.Cmd
	cgroupDir string
	workDir   string
	startedAt time.Time
}

// Launcher drives worker processes directly on the host, confined to a
// per-worker cgroup v2 slice.
type Launcher struct {
	cfg Config

	mu    sync.Mutex
	procs map[string]*process
}

// New builds a Launcher.
func New(cfg Config) *Launcher {
	return &Launcher{cfg: cfg, procs: make(map[string]*process)}
}

// Launch execs the configured agent command for worker, confined to a
// cgroup sized from image.Resources, matching reactor.Launcher.
func (l *Launcher) Launch(ctx context.Context, worker model.Worker, image model.Image) (reactor.LaunchOutcome, error) {
	out := reactor.LaunchOutcome{WorkerName: worker.Name, CreatedAt: time.Now(), Stage: "initialization"}

	if len(l.cfg.AgentCommand) == 0 {
		out.ErrorMessage = "no agent command configured"
		return out, nil
	}

	l.mu.Lock()
	if _, exists := l.procs[worker.Name]; exists {
		l.mu.Unlock()
		out.Success = true
		out.Stage = "already_running"
		return out, nil
	}
	l.mu.Unlock()

	workDir := l.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	workDir = filepath.Join(workDir, worker.Name)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		out.ErrorMessage = fmt.Sprintf("create work dir: %v", err)
		return out, nil
	}

	out.Stage = "creating_cgroup"
	cgroupDir, err := createCgroup(l.cfg.cgroupRoot(), worker.Name, image.Resources)
	if err != nil {
		out.ErrorMessage = err.Error()
		return out, nil
	}

	out.Stage = "starting_process"
	cmd := exec.CommandContext(context.Background(), l.cfg.AgentCommand[0], l.cfg.AgentCommand[1:]...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), agentEnv(worker, image)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		out.ErrorMessage = fmt.Sprintf("start process: %v", err)
		return out, nil
	}
	if err := attachProcess(cgroupDir, cmd.Process.Pid); err != nil {
		out.ErrorMessage = fmt.Sprintf("attach to cgroup: %v", err)
		_ = cmd.Process.Kill()
		return out, nil
	}

	l.mu.Lock()
	l.procs[worker.Name] = &process{cmd: cmd, cgroupDir: cgroupDir, workDir: workDir, startedAt: time.Now()}
	l.mu.Unlock()

	go func() { _ = cmd.Wait() }()

	out.Success = true
	out.Stage = "running"
	return out, nil
}

// Terminate sends SIGTERM to worker's process group, escalating to SIGKILL
// after the configured grace period, then removes its cgroup and work
// directory when cleanupFiles is set.
func (l *Launcher) Terminate(ctx context.Context, workerName string, cleanupFiles bool) (reactor.TerminateOutcome, error) {
	out := reactor.TerminateOutcome{WorkerName: workerName}

	l.mu.Lock()
	p, ok := l.procs[workerName]
	if ok {
		delete(l.procs, workerName)
	}
	l.mu.Unlock()
	if !ok {
		out.Success = true
		return out, nil
	}

	pgid := p.cmd.Process.Pid
	_ = unix.Kill(-pgid, unix.SIGTERM)

	done := make(chan struct{})
	go func() { _ = p.cmd.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(l.cfg.shutdownGrace()):
		_ = unix.Kill(-pgid, unix.SIGKILL)
		<-done
	}

	if cleanupFiles {
		_ = removeCgroup(p.cgroupDir)
		_ = os.RemoveAll(p.workDir)
	}

	out.Success = true
	return out, nil
}

// List reports every process this Launcher still tracks as running.
func (l *Launcher) List(ctx context.Context) ([]reactor.ObservedWorker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]reactor.ObservedWorker, 0, len(l.procs))
	for name, p := range l.procs {
		state := "running"
		active := true
		if p.cmd.ProcessState != nil {
			state = "exited"
			active = false
		}
		out = append(out, reactor.ObservedWorker{Name: name, State: state, Active: active, Observed: time.Now()})
	}
	return out, nil
}

func agentEnv(worker model.Worker, image model.Image) []string {
	env := []string{
		"THORIUM_WORKER_NAME=" + worker.Name,
		"THORIUM_CLUSTER=" + worker.Cluster,
		"THORIUM_NODE=" + worker.Node,
		"THORIUM_GROUP=" + worker.Group,
		"THORIUM_PIPELINE=" + worker.Pipeline,
		"THORIUM_STAGE=" + worker.Stage,
		"THORIUM_USER=" + worker.User,
		"THORIUM_POOL=" + string(worker.Pool),
	}
	for k, v := range image.Env {
		env = append(env, k+"="+v)
	}
	return env
}
