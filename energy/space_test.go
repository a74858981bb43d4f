package energy

import (
	"testing"
)

func TestNewBoxValidation(t *testing.T) {
	if _, err := NewBox([]float64{0, 0}, []float64{1}); err == nil {
		t.Errorf("expected an error for mismatched dimensions")
	}
	if _, err := NewBox([]float64{2}, []float64{1}); err == nil {
		t.Errorf("expected an error for low above high")
	}
	b, err := NewBox([]float64{0, -1}, []float64{1, 1})
	if err != nil {
		t.Fatalf("valid box rejected: %v", err)
	}
	if b.Dim() != 2 {
		t.Errorf("box dimension %d, want 2", b.Dim())
	}
}

func TestUniformBox(t *testing.T) {
	b := UniformBox(3, -5, 5)
	if b.Dim() != 3 {
		t.Fatalf("box dimension %d, want 3", b.Dim())
	}
	for i := 0; i < 3; i++ {
		if b.Low[i] != -5 || b.High[i] != 5 {
			t.Errorf("dimension %d bounds [%v, %v]", i, b.Low[i], b.High[i])
		}
	}
}

func TestBoxContains(t *testing.T) {
	b := UniformBox(2, 0, 10)
	cases := []struct {
		v    []float64
		want bool
	}{
		{[]float64{5, 5}, true},
		{[]float64{0, 10}, true},
		{[]float64{-1, 5}, false},
		{[]float64{5, 11}, false},
		{[]float64{5}, false},
		{[]float64{5, 5, 5}, false},
	}
	for _, tc := range cases {
		if got := b.Contains(tc.v); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestBoxClip(t *testing.T) {
	b := UniformBox(2, 0, 10)
	got := b.Clip([]float64{-3, 12})
	if got[0] != 0 || got[1] != 10 {
		t.Errorf("Clip(-3, 12) = %v", got)
	}
	got = b.Clip([]float64{5, 5})
	if got[0] != 5 || got[1] != 5 {
		t.Errorf("Clip(5, 5) = %v", got)
	}
}
