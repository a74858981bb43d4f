package energy

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeu5/building-rl-env/sim"
	"github.com/zeu5/building-rl-env/template"
)

// Config assembles an Environment. Bridge is a factory so every environment
// instance owns its bridge (and therefore its engine) outright.
type Config struct {
	Bridge func() *sim.Bridge
	Reward RewardFn

	ObsSpace Box
	ActSpace Box

	// ObsTransform defaults to FlattenObs, ActTransform is required.
	ObsTransform ObsTransform
	ActTransform ActTransform

	// OnStep, when set, observes every non-terminal step. Used to hook in
	// telemetry publishers without the environment knowing about them.
	OnStep func(obs []float64, reward float64)
}

// Environment is the gym-style surface over one simulation bridge:
// Reset/Step with observation vectors, rewards and a done flag. Horizon
// truncation is the agent's concern, so truncated is always false here.
type Environment struct {
	cfg    Config
	bridge *sim.Bridge
}

// NewEnvironment validates the config once. Space and transform shapes are
// not re-checked per step.
func NewEnvironment(cfg Config) (*Environment, error) {
	if cfg.Bridge == nil {
		return nil, fmt.Errorf("environment needs a bridge factory")
	}
	if cfg.Reward == nil {
		return nil, fmt.Errorf("environment needs a reward function")
	}
	if cfg.ActTransform == nil {
		return nil, fmt.Errorf("environment needs an action transform")
	}
	if cfg.ObsTransform == nil {
		cfg.ObsTransform = FlattenObs
	}
	if len(cfg.ObsSpace.Low) != len(cfg.ObsSpace.High) || len(cfg.ActSpace.Low) != len(cfg.ActSpace.High) {
		return nil, fmt.Errorf("space bounds disagree on dimension")
	}
	return &Environment{cfg: cfg}, nil
}

func (e *Environment) ObservationSpace() Box { return e.cfg.ObsSpace }
func (e *Environment) ActionSpace() Box     { return e.cfg.ActSpace }

// Bridge exposes the underlying bridge, nil before the first Reset.
func (e *Environment) Bridge() *sim.Bridge { return e.bridge }

// Reset brings the environment to the first decision point of a fresh
// episode and returns the initial observation. The info map carries the
// nested template snapshot under "raw_observation".
func (e *Environment) Reset(ctx context.Context) ([]float64, map[string]any, error) {
	if e.bridge == nil {
		e.bridge = e.cfg.Bridge()
	}
	tpl, err := e.bridge.Reset(ctx)
	if err != nil {
		return nil, nil, err
	}
	obs := e.cfg.ObsTransform(tpl)
	return obs, e.info(tpl), nil
}

// Step applies one action and blocks for the next observation. A normal
// terminal step returns done=true with the last observation; an engine
// crash also ends the episode, with the crash under info["error"] instead
// of a Go error. Protocol misuse still surfaces as an error.
func (e *Environment) Step(ctx context.Context, action []float64) ([]float64, float64, bool, bool, map[string]any, error) {
	if e.bridge == nil {
		return nil, 0, false, false, nil, fmt.Errorf("environment was never reset")
	}
	actuatorValues, err := e.cfg.ActTransform(action)
	if err != nil {
		return nil, 0, false, false, nil, fmt.Errorf("transforming action: %w", err)
	}

	tpl, done, err := e.bridge.Step(ctx, actuatorValues)
	if err != nil {
		var crash *sim.SimulationCrashed
		if errors.As(err, &crash) {
			last := e.bridge.Template()
			obs := e.cfg.ObsTransform(last)
			info := e.info(last)
			info["error"] = crash.Error()
			return obs, 0, true, false, info, nil
		}
		return nil, 0, false, false, nil, err
	}

	obs := e.cfg.ObsTransform(tpl)
	reward := e.cfg.Reward(tpl)
	if e.cfg.OnStep != nil {
		e.cfg.OnStep(obs, reward)
	}
	return obs, reward, done, false, e.info(tpl), nil
}

// Close stops the bridge and releases the engine.
func (e *Environment) Close() error {
	if e.bridge == nil {
		return nil
	}
	return e.bridge.Stop()
}

func (e *Environment) info(tpl *template.Template) map[string]any {
	return map[string]any{"raw_observation": tpl.Snapshot()}
}
