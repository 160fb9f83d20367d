package feature

import "testing"

// feedFlat feeds n ticks of constant energy starting at t0 and returns the
// next tick time. None of these may fire.
func feedFlat(t *testing.T, d *OnsetDetector, t0, energy float64, n int) float64 {
	t.Helper()
	tick := t0
	for i := 0; i < n; i++ {
		if d.Process(tick, energy) {
			t.Fatalf("flat energy fired an onset at t=%f", tick)
		}
		tick += 0.02
	}
	return tick
}

func TestOnsetRequiresHistory(t *testing.T) {
	d := NewOnsetDetector()
	// A spike with under five frames of history must not fire.
	for i := 0; i < 4; i++ {
		d.Process(float64(i)*0.02, 1.0)
	}
	if d.Process(0.08, 10.0) {
		t.Fatal("onset fired before minimum history")
	}
}

func TestOnsetFiresOnSpike(t *testing.T) {
	d := NewOnsetDetector()
	next := feedFlat(t, d, 0, 1.0, 6)
	if !d.Process(next, 2.0) {
		t.Fatal("clear spike did not fire")
	}
}

func TestOnsetMinimumInterval(t *testing.T) {
	d := NewOnsetDetector()
	next := feedFlat(t, d, 0, 1.0, 6)
	if !d.Process(next, 2.0) {
		t.Fatal("first spike did not fire")
	}
	// A second spike 20 ms later is inside the refractory interval.
	if d.Process(next+0.02, 4.0) {
		t.Fatal("second spike fired inside the minimum interval")
	}
	// Settle, then spike again well past the interval.
	settled := feedFlat(t, d, next+0.04, 1.0, 8)
	if !d.Process(settled, 5.0) {
		t.Fatal("spike after the interval did not fire")
	}
}

func TestOnsetFlatSignalNeverFires(t *testing.T) {
	d := NewOnsetDetector()
	feedFlat(t, d, 0, 1.0, 100)
}

func TestOnsetResetClearsState(t *testing.T) {
	d := NewOnsetDetector()
	next := feedFlat(t, d, 0, 1.0, 6)
	if !d.Process(next, 2.0) {
		t.Fatal("spike did not fire")
	}

	d.Reset()
	// Post-reset the detector has no history again.
	if d.Process(100.0, 10.0) {
		t.Fatal("onset fired immediately after reset")
	}
}
