package feature

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/auralab/seamless/logging"
)

// Chroma extraction range. Below 60 Hz pitch classes smear together; above
// 4 kHz the fundamental is long gone.
const (
	chromaMinFreq = 60.0
	chromaMaxFreq = 4000.0
	tuningFreq    = 440.0
)

// Tap is the live analysis surface the frontend reads: a magnitude spectrum
// and a time-domain window of matched resolution, both reflecting the
// current playhead position.
type Tap interface {
	MagnitudeSpectrum() []float64
	TimeDomain() []float64
	BinFrequency(bin int) float64
	SampleRate() int
}

// Frontend derives per-tick features from a tap. Pure reads; positioning
// the tap is the caller's job.
type Frontend struct {
	tap Tap

	// Lazily built, keyed to the tap's bin count.
	bandEdges []int
	chromaMap []int

	logger logging.Logger
}

// NewFrontend creates a frontend over the given tap.
func NewFrontend(tap Tap) *Frontend {
	return &Frontend{
		tap: tap,
		logger: logging.WithFields(logging.Fields{
			"component": "spectral_frontend",
		}),
	}
}

// Envelope sums bin magnitudes into 12 logarithmically spaced bands and
// normalizes by the band maximum. Band i spans bins
// [binCount^(i/12), binCount^((i+1)/12)), widened so every band holds at
// least one bin.
func (f *Frontend) Envelope() []float64 {
	spectrum := f.tap.MagnitudeSpectrum()
	f.ensureMappings(len(spectrum))

	envelope := make([]float64, EnvelopeBands)
	for band := 0; band < EnvelopeBands; band++ {
		lo, hi := f.bandEdges[band], f.bandEdges[band+1]
		sum := 0.0
		for bin := lo; bin < hi; bin++ {
			sum += spectrum[bin]
		}
		envelope[band] = sum
	}

	normalizeByMax(envelope)
	return envelope
}

// Chroma accumulates bin magnitudes per pitch class over [60 Hz, 4 kHz]
// and normalizes by the class maximum.
func (f *Frontend) Chroma() []float64 {
	spectrum := f.tap.MagnitudeSpectrum()
	f.ensureMappings(len(spectrum))

	chroma := make([]float64, ChromaBins)
	for bin, class := range f.chromaMap {
		if class >= 0 {
			chroma[class] += spectrum[bin]
		}
	}

	normalizeByMax(chroma)
	return chroma
}

// LowEnergy returns the mean magnitude over the lowest eighth of the
// spectrum, excluding the DC bin. This feeds onset detection.
func (f *Frontend) LowEnergy() float64 {
	spectrum := f.tap.MagnitudeSpectrum()
	limit := len(spectrum) / 8
	if limit < 2 {
		limit = min(2, len(spectrum))
	}
	if limit <= 1 {
		return 0
	}

	sum := 0.0
	for bin := 1; bin < limit; bin++ {
		sum += spectrum[bin]
	}
	return sum / float64(limit-1)
}

// Amplitude returns the RMS of the current time-domain window.
func (f *Frontend) Amplitude() float64 {
	window := f.tap.TimeDomain()
	if len(window) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(window, window) / float64(len(window)))
}

// RawSamples returns a copy of the current time-domain window, used only
// for sample-level loop alignment.
func (f *Frontend) RawSamples() []float64 {
	window := f.tap.TimeDomain()
	out := make([]float64, len(window))
	copy(out, window)
	return out
}

// Snapshot captures the full spectral state at time t.
func (f *Frontend) Snapshot(t float64) SpectralSnapshot {
	return SpectralSnapshot{
		Time:      t,
		Envelope:  f.Envelope(),
		Chroma:    f.Chroma(),
		Amplitude: f.Amplitude(),
	}
}

// ensureMappings builds the band-edge and pitch-class lookup tables the
// first time the bin count is known.
func (f *Frontend) ensureMappings(binCount int) {
	if len(f.chromaMap) == binCount {
		return
	}

	// Log-spaced band edges over [1, binCount], each band at least one bin.
	f.bandEdges = make([]int, EnvelopeBands+1)
	for i := 0; i <= EnvelopeBands; i++ {
		edge := int(math.Pow(float64(binCount), float64(i)/float64(EnvelopeBands)))
		f.bandEdges[i] = edge
	}
	f.bandEdges[EnvelopeBands] = binCount
	for i := 1; i <= EnvelopeBands; i++ {
		if f.bandEdges[i] <= f.bandEdges[i-1] {
			f.bandEdges[i] = f.bandEdges[i-1] + 1
		}
	}
	for i := EnvelopeBands; i >= 1; i-- {
		if f.bandEdges[i] > binCount-(EnvelopeBands-i) {
			f.bandEdges[i] = binCount - (EnvelopeBands - i)
		}
	}

	// MIDI note rounding folds each bin frequency onto a pitch class;
	// -1 marks bins outside the chroma range.
	f.chromaMap = make([]int, binCount)
	for bin := 0; bin < binCount; bin++ {
		freq := f.tap.BinFrequency(bin)
		if freq < chromaMinFreq || freq > chromaMaxFreq {
			f.chromaMap[bin] = -1
			continue
		}
		midi := 12.0*math.Log2(freq/tuningFreq) + 69.0
		class := int(math.Round(midi)) % ChromaBins
		if class < 0 {
			class += ChromaBins
		}
		f.chromaMap[bin] = class
	}

	f.logger.Debug("Built frontend bin mappings", logging.Fields{
		"bins":        binCount,
		"sample_rate": f.tap.SampleRate(),
	})
}

// normalizeByMax scales a vector by its maximum value. Silent frames stay
// all-zero rather than dividing by zero.
func normalizeByMax(v []float64) {
	maxVal := floats.Max(v)
	if maxVal > 1e-12 {
		floats.Scale(1/maxVal, v)
	}
}
