// Package analysis drives the two capture passes over a track (its first
// captureWindow seconds and its last scanWindow seconds), turning analyser
// frames into the snapshot and onset histories the loop search reads.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/auralab/seamless/audio"
	"github.com/auralab/seamless/dsp"
	"github.com/auralab/seamless/feature"
	"github.com/auralab/seamless/logging"
)

// ErrShortTrack means the track is shorter than the minimum analyzable
// length; the caller loops to absolute time zero without matching.
var ErrShortTrack = errors.New("track shorter than minimum analyzable length")

// Config holds capture tuning.
type Config struct {
	CaptureWindow  float64 `json:"capture_window"`  // head span, seconds
	ScanWindow     float64 `json:"scan_window"`     // tail span, seconds
	SampleInterval float64 `json:"sample_interval"` // snapshot cadence, seconds
	MinSongLength  float64 `json:"min_song_length"` // below this, skip matching
	FFTSize        int     `json:"fft_size"`
	Smoothing      float64 `json:"smoothing"` // analyser time constant
}

// DefaultConfig returns the capture defaults.
func DefaultConfig() Config {
	return Config{
		CaptureWindow:  60.0,
		ScanWindow:     90.0,
		SampleInterval: 0.02,
		MinSongLength:  60.0,
		FFTSize:        32768,
		Smoothing:      0.8,
	}
}

// Validate checks config consistency.
func (c *Config) Validate() error {
	if c.CaptureWindow <= 0 || c.ScanWindow <= 0 {
		return fmt.Errorf("capture windows must be positive")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive: %f", c.SampleInterval)
	}
	if c.FFTSize <= 0 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft size must be a power of two: %d", c.FFTSize)
	}
	return nil
}

// Progress reports capture progress: pass name and completed fraction.
type Progress func(pass string, fraction float64)

// Capture is the read-only result of one pass.
type Capture struct {
	History *feature.History
	Onsets  []feature.OnsetEvent
}

// Orchestrator runs the head and tail capture passes strictly in order.
type Orchestrator struct {
	samples  *audio.Samples
	cfg      Config
	analyser *dsp.Analyser
	progress Progress
	logger   logging.Logger
}

// NewOrchestrator creates an orchestrator over the given buffer.
func NewOrchestrator(samples *audio.Samples, cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	analyser, err := dsp.NewAnalyser(samples, cfg.FFTSize, cfg.Smoothing)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		samples:  samples,
		cfg:      cfg,
		analyser: analyser,
		logger: logging.WithFields(logging.Fields{
			"component": "analysis_orchestrator",
		}),
	}, nil
}

// SetProgress installs an optional progress callback.
func (o *Orchestrator) SetProgress(fn Progress) {
	o.progress = fn
}

// Run captures the head pass then the tail pass and returns both. The tail
// pass never runs for tracks shorter than MinSongLength; Run reports
// ErrShortTrack instead and the caller falls back to loop-to-start.
func (o *Orchestrator) Run(ctx context.Context) (start, end *Capture, err error) {
	duration := o.samples.Duration()

	if duration < o.cfg.MinSongLength {
		o.logger.Info("Track below minimum analyzable length, skipping capture", logging.Fields{
			"duration":        duration,
			"min_song_length": o.cfg.MinSongLength,
		})
		return nil, nil, ErrShortTrack
	}

	startTo := min(o.cfg.CaptureWindow, duration)
	start, err = o.capturePass(ctx, "start", 0, startTo)
	if err != nil {
		return nil, nil, err
	}

	endFrom := max(duration-o.cfg.ScanWindow, 0)
	end, err = o.capturePass(ctx, "end", endFrom, duration)
	if err != nil {
		return nil, nil, err
	}

	o.logger.Info("Capture passes complete", logging.Fields{
		"start_snapshots": start.History.Len(),
		"start_onsets":    len(start.Onsets),
		"end_snapshots":   end.History.Len(),
		"end_onsets":      len(end.Onsets),
	})

	return start, end, nil
}

// capturePass steps the analyser playhead at the sample interval over
// [from, to], appending a snapshot per tick and an onset event whenever
// the detector fires.
func (o *Orchestrator) capturePass(ctx context.Context, name string, from, to float64) (*Capture, error) {
	o.analyser.Reset()
	frontend := feature.NewFrontend(o.analyser)
	detector := feature.NewOnsetDetector()

	span := to - from
	hint := int(span/o.cfg.SampleInterval) + 1
	history := feature.NewHistory(hint)
	var onsets []feature.OnsetEvent

	step := 0
	for t := from; t <= to; t += o.cfg.SampleInterval {
		// Cancellation is checked between ticks; a tick itself is one FFT.
		if step%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		step++

		o.analyser.SetPosition(t)
		snap := frontend.Snapshot(t)
		history.Append(snap)

		if detector.Process(t, frontend.LowEnergy()) {
			onsets = append(onsets, feature.OnsetEvent{
				Time:       t,
				Envelope:   snap.Envelope,
				Chroma:     snap.Chroma,
				RawSamples: frontend.RawSamples(),
			})
		}

		if o.progress != nil && span > 0 {
			o.progress(name, (t-from)/span)
		}
	}

	o.logger.Debug("Capture pass complete", logging.Fields{
		"pass":      name,
		"from":      from,
		"to":        to,
		"snapshots": history.Len(),
		"onsets":    len(onsets),
	})

	return &Capture{History: history, Onsets: onsets}, nil
}
