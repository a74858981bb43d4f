package types

import (
	"encoding/json"
	"os"
)

// Trace of an episode as rewarded triplets (state, action, nextState)
type Trace struct {
	states     []State
	actions    []Action
	nextStates []State
	rewards    []float64
}

func NewTrace() *Trace {
	return &Trace{
		states:     make([]State, 0),
		actions:    make([]Action, 0),
		nextStates: make([]State, 0),
		rewards:    make([]float64, 0),
	}
}

func (t *Trace) Append(state State, action Action, nextState State, reward float64) {
	t.states = append(t.states, state)
	t.actions = append(t.actions, action)
	t.nextStates = append(t.nextStates, nextState)
	t.rewards = append(t.rewards, reward)
}

func (t *Trace) Len() int {
	return len(t.states)
}

func (t *Trace) Get(i int) (State, Action, State, bool) {
	if i >= len(t.states) {
		return nil, nil, nil, false
	}
	return t.states[i], t.actions[i], t.nextStates[i], true
}

// Reward returns the reward of the i-th transition.
func (t *Trace) Reward(i int) float64 {
	if i >= len(t.rewards) {
		return 0
	}
	return t.rewards[i]
}

func (t *Trace) TotalReward() float64 {
	total := 0.0
	for _, r := range t.rewards {
		total += r
	}
	return total
}

func (t *Trace) Last() (State, Action, State, bool) {
	if len(t.states) < 1 {
		return nil, nil, nil, false
	}
	lastIndex := len(t.states) - 1
	return t.states[lastIndex], t.actions[lastIndex], t.nextStates[lastIndex], true
}

func (t *Trace) GetPrefix(i int) (*Trace, bool) {
	if i > len(t.states) {
		return nil, false
	}
	return &Trace{
		states:     t.states[0:i],
		actions:    t.actions[0:i],
		nextStates: t.nextStates[0:i],
		rewards:    t.rewards[0:i],
	}, true
}

// traceStep is the serialized form of one transition. States and actions
// serialize as their hashes: enough to replay coverage and diagnose
// property violations without dragging the full observation along.
type traceStep struct {
	Step   int     `json:"step"`
	State  string  `json:"state"`
	Action string  `json:"action"`
	Next   string  `json:"next"`
	Reward float64 `json:"reward"`
}

func (t *Trace) MarshalJSON() ([]byte, error) {
	steps := make([]traceStep, len(t.states))
	for i := range t.states {
		steps[i] = traceStep{
			Step:   i,
			State:  t.states[i].Hash(),
			Action: t.actions[i].Hash(),
			Next:   t.nextStates[i].Hash(),
			Reward: t.rewards[i],
		}
	}
	return json.Marshal(steps)
}

// Record writes the trace as JSON to the given path.
func (t *Trace) Record(filePath string) {
	bs, err := json.Marshal(t)
	if err != nil {
		return
	}
	os.WriteFile(filePath, bs, 0644)
}
