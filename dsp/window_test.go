package dsp

import (
	"math"
	"testing"
)

func TestWindowShapes(t *testing.T) {
	const size = 257 // odd so the exact center sample exists

	cases := []struct {
		typ    WindowType
		edge   float64 // expected first/last coefficient
		center float64
	}{
		{WindowBlackman, 0.0, 1.0},
		{WindowHann, 0.0, 1.0},
		{WindowRectangular, 1.0, 1.0},
	}
	for _, tc := range cases {
		w, err := NewWindow(tc.typ, size)
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if math.Abs(w.Coefficients[0]-tc.edge) > 1e-9 {
			t.Errorf("%s: edge = %f, want %f", tc.typ, w.Coefficients[0], tc.edge)
		}
		if math.Abs(w.Coefficients[size/2]-tc.center) > 1e-9 {
			t.Errorf("%s: center = %f, want %f", tc.typ, w.Coefficients[size/2], tc.center)
		}
		for i := 0; i < size/2; i++ {
			if math.Abs(w.Coefficients[i]-w.Coefficients[size-1-i]) > 1e-9 {
				t.Fatalf("%s: asymmetric at %d", tc.typ, i)
			}
		}
	}
}

func TestWindowRejectsBadInput(t *testing.T) {
	if _, err := NewWindow(WindowBlackman, 0); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := NewWindow(WindowType("kaiser"), 64); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	w, err := NewWindow(WindowHann, 64)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.ApplyInPlace(make([]float64, 32)); err == nil {
		t.Fatal("expected error for mismatched signal length")
	}
}
