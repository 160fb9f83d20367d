// Package fingerprint builds compact chromaprint-style bit fingerprints from
// snapshot histories and scores them against each other. The loop search
// compares a track's tail against its own head, so scoring is tuned to favor
// near-exact structural repeats over passages that are merely similar.
package fingerprint

import (
	"github.com/auralab/seamless/feature"
)

// Minimum frame counts for a usable fingerprint window. Wide (structural)
// windows need more context than narrow (fine-alignment) windows.
const (
	WideMinFrames   = 10
	NarrowMinFrames = 5
)

// Fingerprint is a time-ordered sequence of 24-bit codes over a snapshot
// window. Each code describes one frame against its predecessor: bits 0-11
// mark pitch classes whose energy rose, bits 12-23 mark pitch classes
// louder than their upper neighbor within the frame.
type Fingerprint struct {
	Codes            []uint32  `json:"codes"`
	AmplitudeContour []float64 `json:"amplitude_contour"`
	StartTime        float64   `json:"start_time"`
	EndTime          float64   `json:"end_time"`
}

// Build encodes the snapshots within windowDuration around centerTime.
// Returns nil when fewer than minFrames snapshots fall in the window.
func Build(history *feature.History, centerTime, windowDuration float64, minFrames int) *Fingerprint {
	half := windowDuration / 2
	snaps := history.Between(centerTime-half, centerTime+half)
	if len(snaps) < minFrames {
		return nil
	}

	codes := make([]uint32, 0, len(snaps)-1)
	contour := make([]float64, 0, len(snaps))
	contour = append(contour, snaps[0].Amplitude)

	for i := 1; i < len(snaps); i++ {
		codes = append(codes, encodePair(snaps[i-1], snaps[i]))
		contour = append(contour, snaps[i].Amplitude)
	}

	return &Fingerprint{
		Codes:            codes,
		AmplitudeContour: contour,
		StartTime:        snaps[0].Time,
		EndTime:          snaps[len(snaps)-1].Time,
	}
}

// encodePair packs the chroma delta and intra-frame chroma ordering of a
// consecutive snapshot pair into one 24-bit code.
func encodePair(prev, cur feature.SpectralSnapshot) uint32 {
	var code uint32
	for p := 0; p < feature.ChromaBins; p++ {
		if cur.Chroma[p] > prev.Chroma[p] {
			code |= 1 << p
		}
		if cur.Chroma[p] > cur.Chroma[(p+1)%feature.ChromaBins] {
			code |= 1 << (feature.ChromaBins + p)
		}
	}
	return code
}

// Len returns the number of codes.
func (fp *Fingerprint) Len() int {
	return len(fp.Codes)
}

// Duration returns the fingerprint's time span in seconds.
func (fp *Fingerprint) Duration() float64 {
	return fp.EndTime - fp.StartTime
}
