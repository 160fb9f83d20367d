package feature

import "math"

// Onset detector tuning. The detector is deliberately twitchy: it produces
// beat-grid candidates for loop alignment, not clean musicological onsets,
// so high recall beats precision here.
const (
	onsetHistorySize  = 10
	onsetMinHistory   = 5
	onsetMinInterval  = 0.1
	onsetRiseRatio    = 1.05 // vs previous frame
	onsetAverageRatio = 1.08 // vs rolling average
)

// OnsetDetector flags sudden low-frequency energy increases via adaptive
// thresholding over a rolling energy history.
type OnsetDetector struct {
	history     []float64
	prev        float64
	hasPrev     bool
	lastOnset   float64
	minInterval float64
}

// NewOnsetDetector creates a detector with default thresholds.
func NewOnsetDetector() *OnsetDetector {
	return &OnsetDetector{
		history:     make([]float64, 0, onsetHistorySize),
		lastOnset:   math.Inf(-1),
		minInterval: onsetMinInterval,
	}
}

// Process feeds one low-frequency energy reading at time t and reports
// whether an onset fired. An onset requires enough history, the minimum
// inter-onset gap, and the energy to beat both the previous frame and the
// rolling average by their respective margins.
func (d *OnsetDetector) Process(t, energy float64) bool {
	fired := false

	if len(d.history) >= onsetMinHistory &&
		t-d.lastOnset >= d.minInterval &&
		d.hasPrev {
		avg := 0.0
		for _, e := range d.history {
			avg += e
		}
		avg /= float64(len(d.history))

		if energy >= d.prev*onsetRiseRatio && energy >= avg*onsetAverageRatio {
			fired = true
			d.lastOnset = t
		}
	}

	d.history = append(d.history, energy)
	if len(d.history) > onsetHistorySize {
		d.history = d.history[1:]
	}
	d.prev = energy
	d.hasPrev = true

	return fired
}

// Reset clears all detector state for a new capture pass.
func (d *OnsetDetector) Reset() {
	d.history = d.history[:0]
	d.prev = 0
	d.hasPrev = false
	d.lastOnset = math.Inf(-1)
}
