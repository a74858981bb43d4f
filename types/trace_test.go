package types

import (
	"encoding/json"
	"os"
	"path"
	"testing"
)

// fakeState and fakeAction are the minimal test doubles for the discrete
// interfaces, shared across the package tests.
type fakeState struct {
	hash    string
	actions []Action
}

func (s *fakeState) Hash() string      { return s.hash }
func (s *fakeState) Actions() []Action { return s.actions }

type fakeAction string

func (a fakeAction) Hash() string { return string(a) }

func st(hash string, actions ...Action) *fakeState {
	return &fakeState{hash: hash, actions: actions}
}

// chainTrace builds a trace s0 -a0-> s1 -a1-> s2 ... with the given rewards.
func chainTrace(actions []string, rewards []float64) *Trace {
	t := NewTrace()
	for i, a := range actions {
		t.Append(st("s"+string(rune('0'+i))), fakeAction(a), st("s"+string(rune('1'+i))), rewards[i])
	}
	return t
}

func TestTraceAppendAndGet(t *testing.T) {
	tr := chainTrace([]string{"a", "b"}, []float64{1, 2.5})

	if tr.Len() != 2 {
		t.Fatalf("trace length %d, want 2", tr.Len())
	}
	s, a, ns, ok := tr.Get(0)
	if !ok {
		t.Fatalf("Get(0) not ok")
	}
	if s.Hash() != "s0" || a.Hash() != "a" || ns.Hash() != "s1" {
		t.Errorf("Get(0) = (%s, %s, %s)", s.Hash(), a.Hash(), ns.Hash())
	}
	if _, _, _, ok := tr.Get(2); ok {
		t.Errorf("Get past the end reported ok")
	}
	if got := tr.Reward(1); got != 2.5 {
		t.Errorf("Reward(1) = %v, want 2.5", got)
	}
	if got := tr.Reward(9); got != 0 {
		t.Errorf("Reward past the end = %v, want 0", got)
	}
	if got := tr.TotalReward(); got != 3.5 {
		t.Errorf("TotalReward() = %v, want 3.5", got)
	}
}

func TestTraceLast(t *testing.T) {
	tr := NewTrace()
	if _, _, _, ok := tr.Last(); ok {
		t.Errorf("Last on an empty trace reported ok")
	}
	tr = chainTrace([]string{"a", "b", "c"}, []float64{0, 0, 0})
	_, a, ns, ok := tr.Last()
	if !ok || a.Hash() != "c" || ns.Hash() != "s3" {
		t.Errorf("Last() = (%v, %v, %v)", a, ns, ok)
	}
}

func TestTracePrefix(t *testing.T) {
	tr := chainTrace([]string{"a", "b", "c"}, []float64{1, 1, 1})

	prefix, ok := tr.GetPrefix(2)
	if !ok {
		t.Fatalf("GetPrefix(2) not ok")
	}
	if prefix.Len() != 2 || prefix.TotalReward() != 2 {
		t.Errorf("prefix has length %d and reward %v", prefix.Len(), prefix.TotalReward())
	}
	if prefix, ok := tr.GetPrefix(0); !ok || prefix.Len() != 0 {
		t.Errorf("empty prefix = (%v, %v)", prefix, ok)
	}
	if prefix, ok := tr.GetPrefix(3); !ok || prefix.Len() != 3 {
		t.Errorf("full prefix = (%v, %v)", prefix, ok)
	}
	if _, ok := tr.GetPrefix(4); ok {
		t.Errorf("prefix past the end reported ok")
	}
}

func TestTraceMarshalJSON(t *testing.T) {
	tr := chainTrace([]string{"heat", "cool"}, []float64{-1, 0})

	bs, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var steps []traceStep
	if err := json.Unmarshal(bs, &steps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("serialized %d steps, want 2", len(steps))
	}
	first := steps[0]
	if first.Step != 0 || first.State != "s0" || first.Action != "heat" || first.Next != "s1" || first.Reward != -1 {
		t.Errorf("first step serialized as %+v", first)
	}
}

func TestTraceRecord(t *testing.T) {
	tr := chainTrace([]string{"a"}, []float64{1})
	filePath := path.Join(t.TempDir(), "trace.json")

	tr.Record(filePath)

	bs, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("reading recorded trace: %v", err)
	}
	var steps []traceStep
	if err := json.Unmarshal(bs, &steps); err != nil {
		t.Fatalf("recorded trace is not valid JSON: %v", err)
	}
	if len(steps) != 1 {
		t.Errorf("recorded %d steps, want 1", len(steps))
	}
}
