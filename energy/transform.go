package energy

import (
	"fmt"
	"math"

	"github.com/zeu5/building-rl-env/template"
)

// ObsTransform maps a refreshed template to the observation vector handed
// to the agent.
type ObsTransform func(*template.Template) []float64

// ActTransform maps an action vector to the actuator values handed to the
// bridge.
type ActTransform func([]float64) (map[string]float64, error)

// FlattenObs is the default observation transform: the template's leaves in
// flatten order.
func FlattenObs(t *template.Template) []float64 {
	return t.Flatten()
}

// SetpointAction maps a two-element action vector onto a dual setpoint pair:
// element 0 is the heating setpoint, element 1 the band width above it.
// Negative widths collapse to zero, so the cooling setpoint never sits below
// the heating setpoint.
func SetpointAction(heatingKey, coolingKey string) ActTransform {
	return func(action []float64) (map[string]float64, error) {
		if len(action) != 2 {
			return nil, fmt.Errorf("setpoint action wants 2 elements, got %d", len(action))
		}
		heat := action[0]
		width := math.Max(action[1], 0)
		return map[string]float64{
			heatingKey: heat,
			coolingKey: heat + width,
		}, nil
	}
}
