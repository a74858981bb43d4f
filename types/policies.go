package types

import (
	"math/rand"
	"time"
)

type Policy interface {
	// NextAction picks among the available actions, false to end the
	// episode early
	NextAction(int, State, []Action) (Action, bool)
	// Update observes one transition
	Update(int, State, Action, State)
	// UpdateIteration observes the whole trace at the end of an episode
	UpdateIteration(int, *Trace)
	// Record writes the policy state under the given path prefix
	Record(string)
	Reset()
}

type RandomPolicy struct {
	rand *rand.Rand
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy() *RandomPolicy {
	return &RandomPolicy{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RandomPolicy) Reset() {

}

func (r *RandomPolicy) UpdateIteration(_ int, _ *Trace) {

}

func (r *RandomPolicy) NextAction(step int, state State, actions []Action) (Action, bool) {
	i := r.rand.Intn(len(actions))
	return actions[i], true
}

func (r *RandomPolicy) Update(_ int, _ State, _ Action, _ State) {}

func (r *RandomPolicy) Record(_ string) {}
