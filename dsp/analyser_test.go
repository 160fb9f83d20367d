package dsp

import (
	"math"
	"testing"

	"github.com/auralab/seamless/audio"
)

const testRate = 8192

// sineBuffer renders seconds of a pure tone.
func sineBuffer(t *testing.T, freq float64, seconds float64) *audio.Samples {
	t.Helper()
	n := int(seconds * testRate)
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = math.Sin(2 * math.Pi * freq * float64(i) / testRate)
	}
	s, err := audio.FromMono(pcm, testRate)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func peakBin(mag []float64) int {
	best := 0
	for i, m := range mag {
		if m > mag[best] {
			best = i
		}
	}
	return best
}

func TestAnalyserRejectsBadConfig(t *testing.T) {
	s := sineBuffer(t, 440, 0.5)
	if _, err := NewAnalyser(s, 1000, 0.8); err == nil {
		t.Fatal("expected error for non power of two fft size")
	}
	if _, err := NewAnalyser(s, 1024, 1.0); err == nil {
		t.Fatal("expected error for smoothing out of range")
	}
	if _, err := NewAnalyser(nil, 1024, 0.8); err == nil {
		t.Fatal("expected error for nil buffer")
	}
}

func TestAnalyserPeakLandsOnToneBin(t *testing.T) {
	const fftSize = 1024
	// 512 Hz sits exactly on bin 64 at this rate and fft size.
	s := sineBuffer(t, 512, 2)
	a, err := NewAnalyser(s, fftSize, 0.8)
	if err != nil {
		t.Fatal(err)
	}

	a.SetPosition(1.0)
	mag := a.MagnitudeSpectrum()
	if got, want := peakBin(mag), 64; got != want {
		t.Fatalf("peak bin = %d (%.1f Hz), want %d (%.1f Hz)",
			got, a.BinFrequency(got), want, a.BinFrequency(want))
	}
	if math.Abs(a.BinFrequency(64)-512) > 1e-9 {
		t.Fatalf("BinFrequency(64) = %f, want 512", a.BinFrequency(64))
	}
	if a.BinCount() != fftSize/2 {
		t.Fatalf("BinCount() = %d, want %d", a.BinCount(), fftSize/2)
	}
}

func TestAnalyserSmoothingDecaysIntoSilence(t *testing.T) {
	const fftSize = 1024
	// One second of tone followed by one second of silence.
	n := 2 * testRate
	pcm := make([]float64, n)
	for i := 0; i < testRate; i++ {
		pcm[i] = math.Sin(2 * math.Pi * 512 * float64(i) / testRate)
	}
	s, err := audio.FromMono(pcm, testRate)
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewAnalyser(s, fftSize, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	// First frame is unsmoothed; a frame fully inside the silent region
	// then halves every prior magnitude.
	a.SetPosition(0.9)
	before := a.MagnitudeSpectrum()[64]
	a.SetPosition(1.9)
	after := a.MagnitudeSpectrum()[64]

	if before <= 0 {
		t.Fatal("expected tone energy in first frame")
	}
	if math.Abs(after-0.5*before) > 1e-6*before {
		t.Fatalf("smoothed magnitude = %g, want half of %g", after, before)
	}
}

func TestAnalyserResetClearsSmoothing(t *testing.T) {
	const fftSize = 1024
	s := sineBuffer(t, 512, 2)
	a, err := NewAnalyser(s, fftSize, 0.9)
	if err != nil {
		t.Fatal(err)
	}

	a.SetPosition(1.0)
	first := a.MagnitudeSpectrum()[64]

	a.Reset()
	a.SetPosition(1.0)
	again := a.MagnitudeSpectrum()[64]

	// After Reset the same frame must come back unsmoothed, identical to
	// a fresh first read.
	if math.Abs(first-again) > 1e-9*first {
		t.Fatalf("post-reset magnitude %g differs from first read %g", again, first)
	}
}
