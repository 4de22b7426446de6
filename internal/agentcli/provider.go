package agentcli

import (
	"pkt.systems/chimerax/core"
	"pkt.systems/chimerax/schema"
)

// NewProvider builds a runner provider covering every supported engine.
// Per-engine overrides are optional; engines without one use defaults.
func NewProvider(overrides map[schema.EngineID]Config) (core.RunnerProvider, error) {
	runners := make(map[schema.EngineID]core.Runner)
	for _, engine := range schema.AvailableEngines() {
		cfg := overrides[engine]
		runner, err := NewRunner(engine, cfg)
		if err != nil {
			return nil, err
		}
		runners[engine] = runner
	}
	return core.EngineRunnerProvider{Runners: runners}, nil
}
