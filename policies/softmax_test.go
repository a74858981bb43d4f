package policies

import (
	"testing"

	"github.com/zeu5/building-rl-env/types"
)

func TestSoftMaxPicksAmongActions(t *testing.T) {
	p := NewSoftMaxPolicy(0.5, 0.5, 1)
	for i := 0; i < 20; i++ {
		a, ok := p.NextAction(i, &testState{hash: "s"}, actionSet("a", "b", "c"))
		if !ok {
			t.Fatalf("policy declined to act")
		}
		switch a.Hash() {
		case "a", "b", "c":
		default:
			t.Fatalf("policy invented action %q", a.Hash())
		}
	}
}

func TestSoftMaxPrefersDominantAction(t *testing.T) {
	p := NewSoftMaxPolicy(0.5, 0.5, 1)
	// a 50-point value gap at temperature 1 makes the bad action weight
	// vanish
	p.qTable.Set("s", "good", 50)
	p.qTable.Set("s", "bad", 0)

	for i := 0; i < 50; i++ {
		a, ok := p.NextAction(i, &testState{hash: "s"}, actionSet("good", "bad"))
		if !ok {
			t.Fatalf("policy declined to act")
		}
		if a.Hash() != "good" {
			t.Fatalf("policy picked the dominated action on draw %d", i)
		}
	}
}

func TestSoftMaxNoActions(t *testing.T) {
	p := NewSoftMaxPolicy(0.5, 0.5, 1)
	if _, ok := p.NextAction(0, &testState{hash: "s"}, nil); ok {
		t.Errorf("policy acted without actions")
	}
}

func TestSoftMaxLearnsFromTraces(t *testing.T) {
	p := NewSoftMaxPolicy(1, 0, 1)

	trace := types.NewTrace()
	trace.Append(&testState{hash: "s0"}, testAction("a"), &testState{hash: "s1"}, 3)
	p.UpdateIteration(0, trace)

	// alpha 1, gamma 0: the value is exactly the reward
	if got := p.qTable.Get("s0", "a", 0); got != 3 {
		t.Errorf("q(s0, a) = %v, want 3", got)
	}
}
