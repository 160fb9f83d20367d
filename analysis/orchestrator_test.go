package analysis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/auralab/seamless/audio"
)

const testRate = 8000

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CaptureWindow = 2.0
	cfg.ScanWindow = 3.0
	cfg.MinSongLength = 5.0
	cfg.FFTSize = 1024
	return cfg
}

// toneTrack renders seconds of a tone with a brief amplitude pulse every
// beat, enough structure for the capture passes to chew on.
func toneTrack(t *testing.T, seconds float64) *audio.Samples {
	t.Helper()
	n := int(seconds * testRate)
	pcm := make([]float64, n)
	for i := range pcm {
		ts := float64(i) / testRate
		amp := 0.3
		if math.Mod(ts, 0.5) < 0.05 {
			amp = 0.9
		}
		pcm[i] = amp * math.Sin(2*math.Pi*220*ts)
	}
	s, err := audio.FromMono(pcm, testRate)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunShortTrack(t *testing.T) {
	o, err := NewOrchestrator(toneTrack(t, 3), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	passes := 0
	o.SetProgress(func(string, float64) { passes++ })

	start, end, err := o.Run(context.Background())
	if !errors.Is(err, ErrShortTrack) {
		t.Fatalf("Run = %v, want ErrShortTrack", err)
	}
	if start != nil || end != nil {
		t.Fatal("short track must not produce captures")
	}
	if passes != 0 {
		t.Fatalf("short track ran %d progress ticks, want none", passes)
	}
}

func TestRunCapturesBothPasses(t *testing.T) {
	cfg := testConfig()
	o, err := NewOrchestrator(toneTrack(t, 8), cfg)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	o.SetProgress(func(pass string, fraction float64) {
		seen[pass] = true
		if fraction < 0 || fraction > 1 {
			t.Fatalf("progress fraction out of range: %f", fraction)
		}
	})

	start, end, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !seen["start"] || !seen["end"] {
		t.Fatalf("progress passes seen: %v", seen)
	}

	// 2 s head at 20 ms ticks, inclusive of both endpoints.
	wantStart := int(cfg.CaptureWindow/cfg.SampleInterval) + 1
	if d := start.History.Len() - wantStart; d < -1 || d > 1 {
		t.Fatalf("start snapshots = %d, want ~%d", start.History.Len(), wantStart)
	}
	wantEnd := int(cfg.ScanWindow/cfg.SampleInterval) + 1
	if d := end.History.Len() - wantEnd; d < -1 || d > 1 {
		t.Fatalf("end snapshots = %d, want ~%d", end.History.Len(), wantEnd)
	}

	// The tail capture covers [duration - ScanWindow, duration].
	if f := end.History.First(); math.Abs(f-5.0) > cfg.SampleInterval {
		t.Fatalf("end capture starts at %f, want ~5.0", f)
	}

	// The pulse train should register onsets in both passes.
	if len(start.Onsets) == 0 || len(end.Onsets) == 0 {
		t.Fatalf("onsets = (%d, %d), want some in both passes", len(start.Onsets), len(end.Onsets))
	}
	for _, ev := range start.Onsets {
		if len(ev.RawSamples) != cfg.FFTSize {
			t.Fatalf("onset raw window = %d samples, want %d", len(ev.RawSamples), cfg.FFTSize)
		}
	}
}

func TestRunHonorsContext(t *testing.T) {
	o, err := NewOrchestrator(toneTrack(t, 8), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
