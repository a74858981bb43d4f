package util

import "testing"

func TestDiscretize(t *testing.T) {
	cases := []struct {
		v, step, want float64
	}{
		{21.3, 0.5, 21.5},
		{21.2, 0.5, 21.0},
		{21.25, 0.5, 21.5},
		{-3.7, 1, -4},
		{19.99, 0, 19.99},
		{19.99, -1, 19.99},
		{0, 0.5, 0},
	}
	for _, c := range cases {
		if got := Discretize(c.v, c.step); got != c.want {
			t.Errorf("Discretize(%v, %v) = %v, want %v", c.v, c.step, got, c.want)
		}
	}
}
