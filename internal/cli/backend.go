package cli

import (
	"context"
	"fmt"

	"github.com/ChuLiYu/shift-rota/internal/controller"
	"github.com/ChuLiYu/shift-rota/internal/reassign"
	"github.com/ChuLiYu/shift-rota/internal/server"
	"github.com/ChuLiYu/shift-rota/pkg/types"
)

// backend what the one-shot commands need; either an in-process controller
// over the configured storage or a running `rota serve` reached with --addr.
type backend interface {
	Generate(ctx context.Context) (controller.GenerateResult, error)
	Move(ctx context.Context, m reassign.Move) (reassign.Result, error)
	GetSchedule(ctx context.Context) (types.Schedule, error)
	GetCounts(ctx context.Context) (map[types.WorkerID]map[types.Position]int, error)
	GetStatus(ctx context.Context) (controller.Status, error)
	GetRoster(ctx context.Context) ([]types.Worker, error)
	SetRoster(ctx context.Context, roster []types.Worker) error
	SetNeeds(ctx context.Context, needs types.NeedMatrix) error
	SetDays(ctx context.Context, n int) error
	Reset(ctx context.Context) error
	Close()
}

func openBackend(cfg *Config) (backend, error) {
	if serverAddr != "" {
		client, conn, err := server.Dial(serverAddr)
		if err != nil {
			return nil, err
		}
		return &remoteBackend{Client: client, close: func() { conn.Close() }}, nil
	}

	ctrlConfig, err := cfg.ControllerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	ctrl, err := controller.NewController(ctrlConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	if err := ctrl.Start(); err != nil {
		ctrl.Stop()
		return nil, fmt.Errorf("failed to start controller: %w", err)
	}
	return &localBackend{ctrl: ctrl}, nil
}

type remoteBackend struct {
	*server.Client
	close func()
}

func (r *remoteBackend) Close() { r.close() }

// localBackend adapts a controller; Close writes the final snapshot.
type localBackend struct {
	ctrl *controller.Controller
}

func (l *localBackend) Generate(ctx context.Context) (controller.GenerateResult, error) {
	return l.ctrl.Generate(ctx)
}

func (l *localBackend) Move(_ context.Context, m reassign.Move) (reassign.Result, error) {
	return l.ctrl.Move(m)
}

func (l *localBackend) GetSchedule(context.Context) (types.Schedule, error) {
	return l.ctrl.Schedule(), nil
}

func (l *localBackend) GetCounts(context.Context) (map[types.WorkerID]map[types.Position]int, error) {
	return l.ctrl.Counts(), nil
}

func (l *localBackend) GetStatus(context.Context) (controller.Status, error) {
	return l.ctrl.GetStatus(), nil
}

func (l *localBackend) GetRoster(context.Context) ([]types.Worker, error) {
	return l.ctrl.Roster(), nil
}

func (l *localBackend) SetRoster(_ context.Context, roster []types.Worker) error {
	return l.ctrl.SetRoster(roster)
}

func (l *localBackend) SetNeeds(_ context.Context, needs types.NeedMatrix) error {
	return l.ctrl.SetNeeds(needs)
}

func (l *localBackend) SetDays(_ context.Context, n int) error {
	return l.ctrl.SetDaysPerWeek(n)
}

func (l *localBackend) Reset(context.Context) error {
	return l.ctrl.Reset()
}

func (l *localBackend) Close() { l.ctrl.Stop() }
