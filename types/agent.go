package types

import (
	"fmt"
)

type AgentConfig struct {
	Episodes    int
	Horizon     int
	Policy      Policy
	Environment Environment
}

// RL Agent configured with the corresponding
// policy and environment
type Agent struct {
	config      *AgentConfig
	policy      Policy
	environment Environment
}

// Instantiates a new Agent
func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:      config,
		policy:      config.Policy,
		environment: config.Environment,
	}
}

func (a *Agent) Horizon() int {
	return a.config.Horizon
}

// RunEpisode runs a single episode up to the horizon, leaving the trace and
// the outcome in the episode context.
func (a *Agent) RunEpisode(eCtx *EpisodeContext) {
	trace := eCtx.Trace
	state, err := a.environment.Reset(eCtx)
	if err != nil {
		eCtx.SetError(fmt.Errorf("resetting environment: %w", err))
		return
	}

	for i := 0; i < a.config.Horizon; i++ {
		actions := state.Actions()
		if len(actions) == 0 {
			// terminal state
			eCtx.Terminal = true
			break
		}
		action, ok := a.policy.NextAction(i, state, actions)
		if !ok {
			break
		}

		sCtx := eCtx.StepContext(i)
		nextState, err := a.environment.Step(action, sCtx)
		if err != nil {
			eCtx.SetError(fmt.Errorf("step %d: %w", i, err))
			return
		}
		a.policy.Update(i, state, action, nextState)
		trace.Append(state, action, nextState, sCtx.Reward)
		eCtx.Timesteps = i + 1
		eCtx.Report.AddValue("reward", sCtx.Reward)

		if sCtx.Done {
			eCtx.Terminal = true
			break
		}
		state = nextState
	}
	a.policy.UpdateIteration(eCtx.Episode, trace)
}
