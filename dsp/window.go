// Package dsp provides the spectral analysis tap the feature extractors
// read from: windowed FFT frames over a PCM buffer with the exponential
// magnitude smoothing real-time analyser nodes apply.
package dsp

import (
	"fmt"
	"math"
)

// WindowType represents different window function types
type WindowType string

const (
	WindowBlackman    WindowType = "blackman"
	WindowHann        WindowType = "hann"
	WindowRectangular WindowType = "rectangular"
)

// Window holds precomputed window coefficients.
type Window struct {
	Type         WindowType
	Size         int
	Coefficients []float64
}

// NewWindow generates window coefficients of the given type and size.
func NewWindow(windowType WindowType, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}

	coefficients := make([]float64, size)
	denominator := float64(size - 1)

	switch windowType {
	case WindowBlackman:
		a0, a1, a2 := 0.42, 0.5, 0.08
		for i := 0; i < size; i++ {
			arg := 2 * math.Pi * float64(i) / denominator
			coefficients[i] = a0 - a1*math.Cos(arg) + a2*math.Cos(2*arg)
		}

	case WindowHann:
		for i := 0; i < size; i++ {
			coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
		}

	case WindowRectangular:
		for i := 0; i < size; i++ {
			coefficients[i] = 1.0
		}

	default:
		return nil, fmt.Errorf("unsupported window type: %s", windowType)
	}

	return &Window{
		Type:         windowType,
		Size:         size,
		Coefficients: coefficients,
	}, nil
}

// ApplyInPlace multiplies a signal by the window coefficients in-place.
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.Size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.Size)
	}
	for i := range signal {
		signal[i] *= w.Coefficients[i]
	}
	return nil
}
