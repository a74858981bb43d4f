package policies

import (
	"github.com/zeu5/building-rl-env/types"
)

// NegativeFrequencyPolicy ignores the environment reward and instead
// penalizes transitions into often-visited states, pushing the agent
// towards unexplored regions of the state space. The reward is internal
// so values update on every step rather than at the end of the episode.
type NegativeFrequencyPolicy struct {
	*SoftMaxPolicy
	freq map[string]int
}

var _ types.Policy = &NegativeFrequencyPolicy{}

func NewNegativeFrequencyPolicy(alpha, gamma, temperature float64) *NegativeFrequencyPolicy {
	return &NegativeFrequencyPolicy{
		SoftMaxPolicy: NewSoftMaxPolicy(alpha, gamma, temperature),
		freq:          make(map[string]int),
	}
}

func (n *NegativeFrequencyPolicy) Reset() {
	n.SoftMaxPolicy.Reset()
	n.freq = make(map[string]int)
}

func (n *NegativeFrequencyPolicy) Update(step int, state types.State, action types.Action, nextState types.State) {
	stateHash := state.Hash()
	actionKey := action.Hash()
	nextStateHash := nextState.Hash()

	n.freq[nextStateHash] += 1
	reward := float64(-1 * n.freq[nextStateHash])

	_, nextVal := n.qTable.Max(nextStateHash, 0)
	curVal := n.qTable.Get(stateHash, actionKey, 0)
	newVal := (1-n.alpha)*curVal + n.alpha*(reward+n.gamma*nextVal)
	n.qTable.Set(stateHash, actionKey, newVal)
}

func (n *NegativeFrequencyPolicy) UpdateIteration(_ int, _ *types.Trace) {
}
