package search

import "gonum.org/v1/gonum/floats"

// bestAlignmentLag finds the lag in [-maxLag, maxLag] at which b best
// overlays a, judged by mean squared error over the overlapping region.
// Two passes: a coarse sweep at coarseStep spacing, then a sample-exact
// sweep around the coarse winner. The windows involved are tens of
// thousands of samples, so the coarse pass takes the bulk of the lag range
// off the table cheaply.
func bestAlignmentLag(a, b []float64, maxLag int) int {
	const coarseStep = 4

	coarse := sweepLags(a, b, -maxLag, maxLag, coarseStep)

	lo := coarse - coarseStep + 1
	hi := coarse + coarseStep - 1
	if lo < -maxLag {
		lo = -maxLag
	}
	if hi > maxLag {
		hi = maxLag
	}
	return sweepLags(a, b, lo, hi, 1)
}

// sweepLags returns the lag in [lo, hi] (stepped) minimizing the MSE of
// b shifted against a.
func sweepLags(a, b []float64, lo, hi, step int) int {
	bestLag := lo
	bestErr := -1.0
	for lag := lo; lag <= hi; lag += step {
		err, ok := lagError(a, b, lag)
		if !ok {
			continue
		}
		if bestErr < 0 || err < bestErr {
			bestErr = err
			bestLag = lag
		}
	}
	return bestLag
}

// lagError computes the mean squared error between a[i] and b[i+lag] over
// their overlap. Reports false when the overlap is empty.
func lagError(a, b []float64, lag int) (float64, bool) {
	start := 0
	if lag < 0 {
		start = -lag
	}
	end := len(a)
	if len(b)-lag < end {
		end = len(b) - lag
	}
	if end <= start {
		return 0, false
	}

	d := floats.Distance(a[start:end], b[start+lag:end+lag], 2)
	return d * d / float64(end-start), true
}
