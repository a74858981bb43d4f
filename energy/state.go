package energy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeu5/building-rl-env/types"
	"github.com/zeu5/building-rl-env/util"
)

// ControlAction is one action of the discrete action set: a named action
// vector for the underlying continuous environment.
type ControlAction struct {
	name   string
	vector []float64
}

func NewControlAction(name string, vector []float64) *ControlAction {
	return &ControlAction{name: name, vector: vector}
}

func (a *ControlAction) Hash() string {
	return a.name
}

func (a *ControlAction) Vector() []float64 {
	return a.vector
}

// ControlState is an observation vector discretized into a hashable state.
type ControlState struct {
	obs     []float64
	hash    string
	actions []types.Action
}

func (s *ControlState) Hash() string {
	return s.hash
}

// Actions returns the fixed action set, empty when the state is terminal.
func (s *ControlState) Actions() []types.Action {
	return s.actions
}

// Observation returns the raw (undiscretized) observation vector.
func (s *ControlState) Observation() []float64 {
	return s.obs
}

// ControlConfig assembles the adapter between the continuous environment
// and the discrete agent machinery.
type ControlConfig struct {
	Environment *Environment
	// Actions maps action names to action vectors. Every state offers the
	// whole set, in sorted name order.
	Actions map[string][]float64
	// Precision is the observation rounding step used for state hashing.
	// Zero means 0.5.
	Precision float64
}

// ControlEnvironment adapts the gym-style environment to the generic agent
// interface: observations hash into discrete states, actions come from a
// fixed named set, rewards and terminal flags travel in the step context.
type ControlEnvironment struct {
	env       *Environment
	actions   []types.Action
	precision float64
}

var _ types.Environment = &ControlEnvironment{}

func NewControlEnvironment(cfg ControlConfig) (*ControlEnvironment, error) {
	if cfg.Environment == nil {
		return nil, fmt.Errorf("control environment needs an environment")
	}
	if len(cfg.Actions) == 0 {
		return nil, fmt.Errorf("control environment needs a non-empty action set")
	}
	if cfg.Precision <= 0 {
		cfg.Precision = 0.5
	}

	names := make([]string, 0, len(cfg.Actions))
	for name := range cfg.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	actions := make([]types.Action, len(names))
	for i, name := range names {
		actions[i] = NewControlAction(name, cfg.Actions[name])
	}

	return &ControlEnvironment{
		env:       cfg.Environment,
		actions:   actions,
		precision: cfg.Precision,
	}, nil
}

func (c *ControlEnvironment) Reset(eCtx *types.EpisodeContext) (types.State, error) {
	obs, _, err := c.env.Reset(eCtx.Context)
	if err != nil {
		return nil, err
	}
	return c.state(obs, false), nil
}

func (c *ControlEnvironment) Step(action types.Action, sCtx *types.StepContext) (types.State, error) {
	ca, ok := action.(*ControlAction)
	if !ok {
		return nil, fmt.Errorf("unexpected action type %T", action)
	}
	obs, reward, done, _, _, err := c.env.Step(sCtx.Episode.Context, ca.vector)
	if err != nil {
		return nil, err
	}
	sCtx.Reward = reward
	sCtx.Done = done
	return c.state(obs, done), nil
}

// Close releases the underlying environment and its engine.
func (c *ControlEnvironment) Close() error {
	return c.env.Close()
}

// state discretizes the observation into a stable hash. Terminal states
// offer no actions, which ends the episode on the agent side.
func (c *ControlEnvironment) state(obs []float64, terminal bool) *ControlState {
	var sb strings.Builder
	for i, v := range obs {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatFloat(util.Discretize(v, c.precision), 'f', -1, 64))
	}
	s := &ControlState{
		obs:  obs,
		hash: sb.String(),
	}
	if !terminal {
		s.actions = c.actions
	}
	return s
}
