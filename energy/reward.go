package energy

import (
	"github.com/zeu5/building-rl-env/template"
)

// RewardFn scores one refreshed observation template. Reward functions only
// read the template.
type RewardFn func(*template.Template) float64

// Band is a comfort temperature band in Celsius.
type Band struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Distance is how far a temperature sits outside the band, zero inside.
func (b Band) Distance(t float64) float64 {
	if t < b.Low {
		return b.Low - t
	}
	if t > b.High {
		return t - b.High
	}
	return 0
}

// ComfortReward scores the negative summed distance of every zone
// temperature to the band. Zero is the best score: every zone inside.
func ComfortReward(band Band) RewardFn {
	return func(t *template.Template) float64 {
		r := 0.0
		for _, zone := range t.Keys("temperature") {
			if v, ok := t.Value("temperature", zone); ok {
				r -= band.Distance(v)
			}
		}
		return r
	}
}

// EnergyReward trades comfort against consumption: the comfort reward minus
// the HVAC electricity meter scaled by weight. A weight around 1e-7 puts a
// joule meter on the same footing as degrees of discomfort.
func EnergyReward(band Band, weight float64) RewardFn {
	comfort := ComfortReward(band)
	return func(t *template.Template) float64 {
		r := comfort(t)
		if v, ok := t.Value("energy", "whole_building"); ok {
			r -= weight * v
		}
		return r
	}
}
