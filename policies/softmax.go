package policies

import (
	"math"
	"time"

	"github.com/zeu5/building-rl-env/types"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// SoftMaxPolicy samples actions from a Boltzmann distribution over the
// learned values. A higher temperature flattens the distribution towards
// uniform, a lower one concentrates it on the best action.
type SoftMaxPolicy struct {
	*EpsilonGreedyPolicy
	temperature float64
	source      rand.Source
}

var _ types.Policy = &SoftMaxPolicy{}

func NewSoftMaxPolicy(alpha, gamma, temperature float64) *SoftMaxPolicy {
	return &SoftMaxPolicy{
		EpsilonGreedyPolicy: NewEpsilonGreedyPolicy(alpha, gamma, 0),
		temperature:         temperature,
		source:              rand.NewSource(uint64(time.Now().UnixNano())),
	}
}

func (s *SoftMaxPolicy) NextAction(step int, state types.State, actions []types.Action) (types.Action, bool) {
	if len(actions) == 0 {
		return nil, false
	}
	stateHash := state.Hash()

	vals := make([]float64, len(actions))
	maxVal := math.Inf(-1)
	for i, action := range actions {
		vals[i] = s.qTable.Get(stateHash, action.Hash(), 0) / s.temperature
		if vals[i] > maxVal {
			maxVal = vals[i]
		}
	}
	// shift by the max before exponentiating to keep the weights finite
	sum := float64(0)
	weights := make([]float64, len(actions))
	for i, val := range vals {
		exp := math.Exp(val - maxVal)
		weights[i] = exp
		sum += exp
	}
	for i := range weights {
		weights[i] = weights[i] / sum
	}
	i, ok := sampleuv.NewWeighted(weights, s.source).Take()
	if !ok {
		return nil, false
	}
	return actions[i], true
}
