package seamless

import (
	"fmt"
	"time"

	"github.com/auralab/seamless/analysis"
	"github.com/auralab/seamless/playback"
	"github.com/auralab/seamless/search"
)

// Config holds every engine tuning knob. The analysis window sizes are
// tunable constants rather than semantics; the defaults are what ships.
type Config struct {
	// Playback
	CrossfadeDuration float64       `json:"crossfade_duration"` // seconds
	MonitorInterval   time.Duration `json:"monitor_interval"`

	// Capture
	CaptureWindow  float64 `json:"capture_window"`  // head capture span, seconds
	ScanWindow     float64 `json:"scan_window"`     // tail capture span, seconds
	SampleInterval float64 `json:"sample_interval"` // snapshot cadence, seconds
	MinSongLength  float64 `json:"min_song_length"` // below this, loop-to-start only
	FFTSize        int     `json:"fft_size"`
	Smoothing      float64 `json:"smoothing"`

	// Search
	StructuralWindow float64 `json:"structural_window"` // phase 1 fingerprint span
	FineWindow       float64 `json:"fine_window"`       // phase 2 fingerprint span
	MatchThreshold   float64 `json:"match_threshold"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		CrossfadeDuration: 0.5,
		MonitorInterval:   100 * time.Millisecond,
		CaptureWindow:     60.0,
		ScanWindow:        90.0,
		SampleInterval:    0.02,
		MinSongLength:     60.0,
		FFTSize:           32768,
		Smoothing:         0.8,
		StructuralWindow:  5.0,
		FineWindow:        0.5,
		MatchThreshold:    0.75,
	}
}

// Validate checks config consistency.
func (c *Config) Validate() error {
	if c.CrossfadeDuration <= 0 {
		return fmt.Errorf("crossfade duration must be positive: %f", c.CrossfadeDuration)
	}
	ac := c.analysisConfig()
	if err := ac.Validate(); err != nil {
		return err
	}
	sc := c.searchConfig(1)
	return sc.Validate()
}

func (c *Config) analysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.CaptureWindow = c.CaptureWindow
	cfg.ScanWindow = c.ScanWindow
	cfg.SampleInterval = c.SampleInterval
	cfg.MinSongLength = c.MinSongLength
	cfg.FFTSize = c.FFTSize
	cfg.Smoothing = c.Smoothing
	return cfg
}

func (c *Config) searchConfig(sampleRate int) search.Config {
	cfg := search.DefaultConfig(sampleRate)
	cfg.StructuralWindow = c.StructuralWindow
	cfg.FineWindow = c.FineWindow
	cfg.MatchThreshold = c.MatchThreshold
	return cfg
}

func (c *Config) playbackConfig() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.CrossfadeDuration = c.CrossfadeDuration
	cfg.MonitorInterval = c.MonitorInterval
	return cfg
}
