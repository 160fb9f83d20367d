package search

import (
	"math/rand"
	"testing"
)

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

// smoothSignal is band-limited noise: a moving average over white noise.
// The alignment search's coarse pass assumes the error surface dips over a
// neighborhood around the true lag, which holds for audio but not for
// white noise.
func smoothSignal(n int, seed int64) []float64 {
	const window = 16
	raw := randomSignal(n+window, seed)
	out := make([]float64, n)
	for i := range out {
		sum := 0.0
		for k := 0; k < window; k++ {
			sum += raw[i+k]
		}
		out[i] = sum / window
	}
	return out
}

func TestBestAlignmentLagZeroForIdentical(t *testing.T) {
	sig := randomSignal(4096, 3)
	if got := bestAlignmentLag(sig, sig, 500); got != 0 {
		t.Fatalf("bestAlignmentLag(x, x) = %d, want 0", got)
	}
}

func TestBestAlignmentLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 4096
		shift  = 137
		maxLag = 400
	)
	a := smoothSignal(n, 7)
	b := make([]float64, n)
	copy(b[shift:], a)

	if got := bestAlignmentLag(a, b, maxLag); got != shift {
		t.Fatalf("bestAlignmentLag() = %d, want %d", got, shift)
	}
}

func TestBestAlignmentLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 4096
		shift  = -211
		maxLag = 400
	)
	a := smoothSignal(n, 11)
	b := make([]float64, n)
	copy(b, a[-shift:])

	if got := bestAlignmentLag(a, b, maxLag); got != shift {
		t.Fatalf("bestAlignmentLag() = %d, want %d", got, shift)
	}
}

func TestLagErrorEmptyOverlap(t *testing.T) {
	a := randomSignal(16, 1)
	b := randomSignal(16, 2)
	if _, ok := lagError(a, b, 16); ok {
		t.Fatal("expected no overlap at lag == len(b)")
	}
	if _, ok := lagError(a, b, -16); ok {
		t.Fatal("expected no overlap at lag == -len(a)")
	}
}

func TestLagErrorZeroForAlignedCopy(t *testing.T) {
	a := randomSignal(1024, 9)
	err, ok := lagError(a, a, 0)
	if !ok {
		t.Fatal("expected overlap at lag 0")
	}
	if err != 0 {
		t.Fatalf("lagError(x, x, 0) = %g, want 0", err)
	}
}
