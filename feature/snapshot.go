// Package feature turns analyser frames into the per-tick features the loop
// search consumes: banded envelopes, pitch-class chroma, RMS amplitude, and
// onset events carrying raw waveform windows.
package feature

import (
	"sort"
)

// ChromaBins is the number of pitch classes per octave.
const ChromaBins = 12

// EnvelopeBands is the number of log-spaced spectral bands in the envelope.
const EnvelopeBands = 12

// SpectralSnapshot captures the spectral state at one analysis tick.
// Envelope and chroma are normalized to their own frame maximum so
// snapshots from different ticks compare directly.
type SpectralSnapshot struct {
	Time      float64   `json:"time"`
	Envelope  []float64 `json:"envelope"`
	Chroma    []float64 `json:"chroma"`
	Amplitude float64   `json:"amplitude"`
}

// OnsetEvent is captured only at detected onsets and carries a raw sample
// window for sample-level cross-correlation later.
type OnsetEvent struct {
	Time       float64   `json:"time"`
	Envelope   []float64 `json:"envelope"`
	Chroma     []float64 `json:"chroma"`
	RawSamples []float64 `json:"-"`
}

// History is an append-only, time-ordered snapshot sequence built during a
// capture pass and read-only afterwards.
type History struct {
	snapshots []SpectralSnapshot
}

// NewHistory creates a history pre-sized for the expected snapshot count
// (captureWindow / sampleInterval). Growth beyond the hint is still allowed.
func NewHistory(capacityHint int) *History {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &History{
		snapshots: make([]SpectralSnapshot, 0, capacityHint),
	}
}

// Append adds a snapshot. Snapshots must arrive in time order.
func (h *History) Append(s SpectralSnapshot) {
	h.snapshots = append(h.snapshots, s)
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.snapshots)
}

// At returns the i-th snapshot.
func (h *History) At(i int) SpectralSnapshot {
	return h.snapshots[i]
}

// Between returns the snapshots with Time in [t0, t1], in time order. The
// returned slice aliases the history's storage.
func (h *History) Between(t0, t1 float64) []SpectralSnapshot {
	lo := sort.Search(len(h.snapshots), func(i int) bool {
		return h.snapshots[i].Time >= t0
	})
	hi := sort.Search(len(h.snapshots), func(i int) bool {
		return h.snapshots[i].Time > t1
	})
	return h.snapshots[lo:hi]
}

// First returns the earliest snapshot time, or 0 for an empty history.
func (h *History) First() float64 {
	if len(h.snapshots) == 0 {
		return 0
	}
	return h.snapshots[0].Time
}

// Last returns the latest snapshot time, or 0 for an empty history.
func (h *History) Last() float64 {
	if len(h.snapshots) == 0 {
		return 0
	}
	return h.snapshots[len(h.snapshots)-1].Time
}
