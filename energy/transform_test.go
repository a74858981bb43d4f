package energy

import (
	"strings"
	"testing"

	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/template"
)

func TestSetpointAction(t *testing.T) {
	transform := SetpointAction("heating_sch", "cooling_sch")

	values, err := transform([]float64{20, 3})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if values["heating_sch"] != 20 {
		t.Errorf("heating setpoint %v, want 20", values["heating_sch"])
	}
	if values["cooling_sch"] != 23 {
		t.Errorf("cooling setpoint %v, want 23", values["cooling_sch"])
	}
}

func TestSetpointActionClampsNegativeWidth(t *testing.T) {
	transform := SetpointAction("h", "c")

	values, err := transform([]float64{21, -4})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if values["h"] != 21 || values["c"] != 21 {
		t.Errorf("negative width should collapse the band, got h=%v c=%v", values["h"], values["c"])
	}
}

func TestSetpointActionRejectsWrongShape(t *testing.T) {
	transform := SetpointAction("h", "c")
	if _, err := transform([]float64{20}); err == nil {
		t.Errorf("expected an error for a 1-element action")
	}
	if _, err := transform([]float64{20, 3, 1}); err == nil {
		t.Errorf("expected an error for a 3-element action")
	}
}

func TestFlattenObs(t *testing.T) {
	tpl := templateWith(t, map[string]float64{
		"temperature/z1": 21,
		"temperature/z2": 19,
		"time/current":   24,
	})
	got := FlattenObs(tpl)
	want := []float64{21, 19, 24}
	if len(got) != len(want) {
		t.Fatalf("observation length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("observation[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// templateWith builds a bound template whose leaves read the given values.
// Paths are slash separated, and leaves flatten in lexicographic order.
func templateWith(t *testing.T, values map[string]float64) *template.Template {
	t.Helper()
	tpl := template.New()
	for path := range values {
		hole := template.VariableHole(path, "test")
		if err := tpl.Add(hole, strings.Split(path, "/")...); err != nil {
			t.Fatalf("adding %s: %v", path, err)
		}
	}
	byHandle := map[engine.Handle]float64{}
	next := engine.Handle(0)
	err := tpl.Bind(func(h template.Hole) (engine.Handle, error) {
		handle := next
		next++
		byHandle[handle] = values[h.Name]
		return handle, nil
	})
	if err != nil {
		t.Fatalf("binding template: %v", err)
	}
	tpl.Refresh(func(h engine.Handle) float64 { return byHandle[h] })
	return tpl
}
