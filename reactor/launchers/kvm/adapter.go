package kvm

import (
	"context"

	"github.com/thorium-platform/thorium/model"
	"github.com/thorium-platform/thorium/reactor"
)

// Adapter satisfies reactor.Launcher by translating Launcher's
// libvirt-specific result types down to the reactor's backend-agnostic
// shape. The domain logic in domain.go stays untouched.
type Adapter struct {
	*Launcher
}

// NewAdapter builds a reactor.Launcher backed by a KVM Launcher.
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{Launcher: New(cfg)}
}

func (a *Adapter) Launch(ctx context.Context, worker model.Worker, image model.Image) (reactor.LaunchOutcome, error) {
	res, err := a.Launcher.Launch(ctx, worker, image)
	if err != nil {
		return reactor.LaunchOutcome{}, err
	}
	return reactor.LaunchOutcome{
		Success:      res.Success,
		WorkerName:   res.WorkerName,
		ErrorMessage: res.ErrorMessage,
		Stage:        res.Stage,
		CreatedAt:    res.CreatedAt,
	}, nil
}

func (a *Adapter) Terminate(ctx context.Context, workerName string, cleanupFiles bool) (reactor.TerminateOutcome, error) {
	res, err := a.Launcher.Terminate(ctx, workerName, cleanupFiles)
	if err != nil {
		return reactor.TerminateOutcome{}, err
	}
	return reactor.TerminateOutcome{
		Success:      res.Success,
		WorkerName:   res.WorkerName,
		ErrorMessage: res.ErrorMessage,
	}, nil
}

func (a *Adapter) List(ctx context.Context) ([]reactor.ObservedWorker, error) {
	vms, err := a.Launcher.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]reactor.ObservedWorker, 0, len(vms))
	for _, v := range vms {
		out = append(out, reactor.ObservedWorker{Name: v.Name, State: v.State, Active: v.IsActive, Observed: v.Observed})
	}
	return out, nil
}
