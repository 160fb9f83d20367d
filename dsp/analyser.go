package dsp

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/auralab/seamless/audio"
	"github.com/auralab/seamless/logging"
)

// Analyser is the offline counterpart of a real-time analyser tap: it is
// positioned at a playhead time over a PCM buffer and exposes a smoothed
// magnitude spectrum plus the raw time-domain window ending at that time.
//
// Magnitude smoothing follows the analyser-node convention:
// mag = s*prev + (1-s)*current, with s the smoothing time constant. The
// smoothing state carries across successive SetPosition calls, so a capture
// pass must call Reset before rewinding the playhead.
type Analyser struct {
	samples   *audio.Samples
	fftSize   int
	smoothing float64
	window    *Window

	frameBuf   []float64
	magnitude  []float64
	timeDomain []float64
	position   float64
	primed     bool

	logger logging.Logger
}

// NewAnalyser creates an analyser over the given buffer. fftSize must be a
// power of two; smoothing must be in [0, 1).
func NewAnalyser(samples *audio.Samples, fftSize int, smoothing float64) (*Analyser, error) {
	if samples == nil || samples.Len() == 0 {
		return nil, fmt.Errorf("empty samples buffer")
	}
	if fftSize <= 0 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two: %d", fftSize)
	}
	if smoothing < 0 || smoothing >= 1 {
		return nil, fmt.Errorf("smoothing must be in [0, 1): %f", smoothing)
	}

	window, err := NewWindow(WindowBlackman, fftSize)
	if err != nil {
		return nil, err
	}

	return &Analyser{
		samples:    samples,
		fftSize:    fftSize,
		smoothing:  smoothing,
		window:     window,
		frameBuf:   make([]float64, fftSize),
		magnitude:  make([]float64, fftSize/2),
		timeDomain: make([]float64, fftSize),
		logger: logging.WithFields(logging.Fields{
			"component": "analyser",
			"fft_size":  fftSize,
		}),
	}, nil
}

// SetPosition moves the playhead to t seconds and recomputes the current
// frame. The frame covers the fftSize samples ending at t.
func (a *Analyser) SetPosition(t float64) {
	endIdx := a.samples.IndexAt(t)
	frame := a.samples.Window(endIdx, a.fftSize)
	copy(a.timeDomain, frame)

	copy(a.frameBuf, frame)
	a.window.ApplyInPlace(a.frameBuf)

	spectrum := fft.FFTReal(a.frameBuf)

	s := a.smoothing
	if !a.primed {
		s = 0
		a.primed = true
	}
	for i := range a.magnitude {
		mag := cmplx.Abs(spectrum[i])
		a.magnitude[i] = s*a.magnitude[i] + (1-s)*mag
	}
	a.position = t
}

// Reset clears the smoothing state so a new capture pass starts fresh.
func (a *Analyser) Reset() {
	a.primed = false
	for i := range a.magnitude {
		a.magnitude[i] = 0
	}
}

// MagnitudeSpectrum returns the smoothed magnitude spectrum of the current
// frame. The slice is reused between SetPosition calls; callers that keep
// the data must copy it.
func (a *Analyser) MagnitudeSpectrum() []float64 {
	return a.magnitude
}

// TimeDomain returns the raw (unwindowed) sample window of the current
// frame. Same reuse caveat as MagnitudeSpectrum.
func (a *Analyser) TimeDomain() []float64 {
	return a.timeDomain
}

// BinCount returns the number of frequency bins (fftSize / 2).
func (a *Analyser) BinCount() int {
	return a.fftSize / 2
}

// BinFrequency returns the center frequency of an FFT bin in Hz.
func (a *Analyser) BinFrequency(bin int) float64 {
	return float64(bin) * float64(a.samples.SampleRate) / float64(a.fftSize)
}

// SampleRate returns the underlying buffer's sample rate.
func (a *Analyser) SampleRate() int {
	return a.samples.SampleRate
}

// Position returns the current playhead time in seconds.
func (a *Analyser) Position() float64 {
	return a.position
}
