package core

import (
	"context"
	"fmt"

	"pkt.systems/chimerax/schema"
)

// RunnerRequest selects a runner instance.
type RunnerRequest struct {
	UserID schema.UserID
	TabID  schema.TabID
	Engine schema.EngineID
}

// RunnerResponse returns a runner for the requested engine.
type RunnerResponse struct {
	Runner Runner
}

// RunnerProvider returns a runner for a given engine.
type RunnerProvider interface {
	RunnerFor(ctx context.Context, req RunnerRequest) (RunnerResponse, error)
}

// EngineRunnerProvider dispatches to one runner per engine.
type EngineRunnerProvider struct {
	Runners map[schema.EngineID]Runner
}

// RunnerFor returns the runner registered for the requested engine.
func (p EngineRunnerProvider) RunnerFor(_ context.Context, req RunnerRequest) (RunnerResponse, error) {
	runner := p.Runners[req.Engine]
	if runner == nil {
		return RunnerResponse{}, fmt.Errorf("%w: %s", schema.ErrEngineUnavailable, req.Engine)
	}
	return RunnerResponse{Runner: runner}, nil
}

// StaticRunnerProvider wraps a single runner instance for all engines.
type StaticRunnerProvider struct {
	Runner Runner
}

// RunnerFor returns the configured runner.
func (p StaticRunnerProvider) RunnerFor(_ context.Context, _ RunnerRequest) (RunnerResponse, error) {
	if p.Runner == nil {
		return RunnerResponse{}, fmt.Errorf("runner provider has no runner")
	}
	return RunnerResponse{Runner: p.Runner}, nil
}
