// Package energy turns a simulation bridge into a gym-style control
// environment: continuous observation and action vectors, a reward over the
// observation template, and reset/step semantics that absorb engine crashes
// into terminal steps.
package energy

import (
	"fmt"
	"math"
)

// Box is a bounded continuous vector space.
type Box struct {
	Low  []float64
	High []float64
}

// NewBox validates the bounds once at construction. No later call checks
// shapes again.
func NewBox(low, high []float64) (Box, error) {
	if len(low) != len(high) {
		return Box{}, fmt.Errorf("box bounds disagree on dimension: %d vs %d", len(low), len(high))
	}
	for i := range low {
		if low[i] > high[i] {
			return Box{}, fmt.Errorf("box dimension %d has low %.2f above high %.2f", i, low[i], high[i])
		}
	}
	return Box{Low: low, High: high}, nil
}

// UniformBox is a box with the same bounds in every dimension.
func UniformBox(dim int, low, high float64) Box {
	b := Box{Low: make([]float64, dim), High: make([]float64, dim)}
	for i := 0; i < dim; i++ {
		b.Low[i] = low
		b.High[i] = high
	}
	return b
}

func (b Box) Dim() int {
	return len(b.Low)
}

// Contains reports whether the vector has the box's dimension and sits
// inside the bounds.
func (b Box) Contains(v []float64) bool {
	if len(v) != len(b.Low) {
		return false
	}
	for i, x := range v {
		if x < b.Low[i] || x > b.High[i] {
			return false
		}
	}
	return true
}

// Clip projects a vector of the box's dimension onto the bounds.
func (b Box) Clip(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if i >= len(b.Low) {
			out[i] = x
			continue
		}
		out[i] = math.Min(math.Max(x, b.Low[i]), b.High[i])
	}
	return out
}
