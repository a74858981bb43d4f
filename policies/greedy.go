package policies

import (
	"time"

	"github.com/zeu5/building-rl-env/types"
	"golang.org/x/exp/rand"
)

// EpsilonGreedyPolicy picks the best known action for the current state,
// falling back to a uniformly random one with probability epsilon. Values
// are learned from the episode trace with a one-step Q update.
type EpsilonGreedyPolicy struct {
	qTable  *QTable
	alpha   float64
	gamma   float64
	epsilon float64
	rand    *rand.Rand
}

var _ types.Policy = &EpsilonGreedyPolicy{}

func NewEpsilonGreedyPolicy(alpha, gamma, epsilon float64) *EpsilonGreedyPolicy {
	return &EpsilonGreedyPolicy{
		qTable:  NewQTable(),
		alpha:   alpha,
		gamma:   gamma,
		epsilon: epsilon,
		rand:    rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
}

func (e *EpsilonGreedyPolicy) Reset() {
	e.qTable = NewQTable()
}

func (e *EpsilonGreedyPolicy) Record(path string) {
	e.qTable.Record(path)
}

func (e *EpsilonGreedyPolicy) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	if e.rand.Float64() < e.epsilon {
		i := e.rand.Intn(len(actions))
		return actions[i], true
	}

	actionsMap := make(map[string]types.Action)
	availableActions := make([]string, len(actions))
	for i, a := range actions {
		aHash := a.Hash()
		actionsMap[aHash] = a
		availableActions[i] = aHash
	}
	maxAction, _ := e.qTable.MaxAmong(state.Hash(), availableActions, 0)
	if maxAction == "" {
		return nil, false
	}
	return actionsMap[maxAction], true
}

func (e *EpsilonGreedyPolicy) Update(_ int, _ types.State, _ types.Action, _ types.State) {
}

// UpdateIteration replays the episode backwards so that later rewards
// propagate to earlier states in a single pass.
func (e *EpsilonGreedyPolicy) UpdateIteration(iteration int, trace *types.Trace) {
	lastIndex := trace.Len() - 1
	for i := lastIndex; i > -1; i-- {
		state, action, nextState, ok := trace.Get(i)
		if !ok {
			continue
		}
		nextVal := 0.0
		// the value beyond the horizon is unknown, treat it as zero
		if i != lastIndex {
			_, nextVal = e.qTable.Max(nextState.Hash(), 0)
		}
		curVal := e.qTable.Get(state.Hash(), action.Hash(), 0)
		newVal := (1-e.alpha)*curVal + e.alpha*(trace.Reward(i)+e.gamma*nextVal)
		e.qTable.Set(state.Hash(), action.Hash(), newVal)
	}
}
