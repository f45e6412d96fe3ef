//go:build windows

// Package windows implements the reactor's Windows launch backend: a
// worker is a child process of the reactor, the same os/exec process
// lifecycle baremetal.Launcher drives, minus cgroup confinement (no
// equivalent primitive on this platform; resource limits are left to the
// image's own container runtime if any).
package windows

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/reactor"
)

// Config carries the host-local settings every launch/terminate call needs.
type Config struct {
	AgentCommand  []string
	WorkDir       string
	ShutdownGrace time.Duration
}

func (c Config) shutdownGrace() time.Duration {
	if c.ShutdownGrace > 0 {
		return c.ShutdownGrace
	}
	return 10 * time.Second
}

type process struct {
	cmd     *exec.Cmd
	workDir string
}

// Launcher drives worker processes on a Windows host.
type Launcher struct {
	cfg Config

	mu    sync.Mutex
	procs map[string]*process
}

// New builds a Launcher.
func New(cfg Config) *Launcher {
	return &Launcher{cfg: cfg, procs: make(map[string]*process)}
}

// Launch starts the configured agent command as a worker's backing process.
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

	out.Stage = "starting_process"
	cmd := exec.CommandContext(context.Background(), l.cfg.AgentCommand[0], l.cfg.AgentCommand[1:]...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), agentEnv(worker, image)...)

	if err := cmd.Start(); err != nil {
		out.ErrorMessage = fmt.Sprintf("start process: %v", err)
		return out, nil
	}

	l.mu.Lock()
	l.procs[worker.Name] = &process{cmd: cmd, workDir: workDir}
	l.mu.Unlock()

	go func() { _ = cmd.Wait() }()

	out.Success = true
	out.Stage = "running"
	return out, nil
}

// Terminate kills worker's process, waiting up to ShutdownGrace for a
// graceful exit first.
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

	done := make(chan struct{})
	go func() { _ = p.cmd.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(l.cfg.shutdownGrace()):
		_ = p.cmd.Process.Kill()
		<-done
	}

	if cleanupFiles {
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
