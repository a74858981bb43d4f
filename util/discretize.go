package util

import "math"

// Discretize snaps v to the nearest multiple of step. A step of zero or
// less leaves v unchanged.
func Discretize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
