// Package search finds the (endTime, startTime) pair that loops a track
// most seamlessly. Three passes of increasing resolution: structural
// fingerprint matching at 0.5 s stride, fine re-alignment at 20 ms stride,
// then sample-level cross-correlation on captured onset waveforms.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/auralab/seamless/feature"
	"github.com/auralab/seamless/fingerprint"
	"github.com/auralab/seamless/logging"
)

var (
	// ErrInsufficientData means a capture history was too sparse to search.
	ErrInsufficientData = errors.New("insufficient snapshot data for loop search")

	// ErrNoMatch means no candidate pair cleared the match threshold.
	ErrNoMatch = errors.New("no loop candidate above match threshold")
)

// Config holds the search tuning knobs. The window sizes are tunable
// constants, not load-bearing semantics; the defaults are what shipped.
type Config struct {
	StructuralWindow     float64 `json:"structural_window"`      // phase 1 fingerprint span, seconds
	FineWindow           float64 `json:"fine_window"`            // phase 2 fingerprint span, seconds
	CandidateStride      float64 `json:"candidate_stride"`       // phase 1 center step, seconds
	FineSearchRange      float64 `json:"fine_search_range"`      // phase 2 offset half-range, seconds
	FineStep             float64 `json:"fine_step"`              // phase 2 offset step, seconds
	MatchThreshold       float64 `json:"match_threshold"`        // phase 1 minimum structural score
	ScoreSlack           float64 `json:"score_slack"`            // keep candidates within this of the best
	MaxCandidates        int     `json:"max_candidates"`         // phase 2 input cap
	ClusterDurationSlack float64 `json:"cluster_duration_slack"` // seconds of loop-duration grouping
	DurationWeight       float64 `json:"duration_weight"`        // score units per second of extra loop length
	MinSnapshots         int     `json:"min_snapshots"`          // per-history floor before searching
	SampleRate           int     `json:"sample_rate"`            // for phase 3 lag conversion
	MaxSampleLag         float64 `json:"max_sample_lag"`         // phase 3 correlation slack, seconds
}

// DefaultConfig returns the search defaults.
func DefaultConfig(sampleRate int) Config {
	return Config{
		StructuralWindow:     5.0,
		FineWindow:           0.5,
		CandidateStride:      0.5,
		FineSearchRange:      0.5,
		FineStep:             0.02,
		MatchThreshold:       0.75,
		ScoreSlack:           0.05,
		MaxCandidates:        10,
		ClusterDurationSlack: 5.0,
		DurationWeight:       0.00005,
		MinSnapshots:         50,
		SampleRate:           sampleRate,
		MaxSampleLag:         0.05,
	}
}

// Validate checks config consistency.
func (c *Config) Validate() error {
	if c.StructuralWindow <= 0 || c.FineWindow <= 0 {
		return fmt.Errorf("window sizes must be positive")
	}
	if c.CandidateStride <= 0 || c.FineStep <= 0 {
		return fmt.Errorf("strides must be positive")
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be in (0, 1]: %f", c.MatchThreshold)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.SampleRate)
	}
	return nil
}

// Candidate is a phase 1 structural match.
type Candidate struct {
	EndTime               float64 `json:"end_time"`
	StartTime             float64 `json:"start_time"`
	StructuralScore       float64 `json:"structural_score"`
	AlignmentOffsetFrames int     `json:"alignment_offset_frames"`
}

// refinedCandidate is a phase 2 result.
type refinedCandidate struct {
	endTime         float64
	startTime       float64
	fineScore       float64
	structuralScore float64
	combinedScore   float64
	loopDuration    float64
}

// LoopPoint is the final search result. Invariant: 0 <= StartTime < EndTime.
type LoopPoint struct {
	EndTime   float64 `json:"end_time"`
	StartTime float64 `json:"start_time"`
	Score     float64 `json:"score"`
}

// Searcher runs the three-phase loop point search.
type Searcher struct {
	cfg    Config
	logger logging.Logger
}

// NewSearcher creates a searcher with the given config.
func NewSearcher(cfg Config) (*Searcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}
	return &Searcher{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "loop_search",
		}),
	}, nil
}

// Find searches the two capture histories for the best loop point.
// Returns ErrInsufficientData or ErrNoMatch when the caller should fall
// back to looping to absolute time zero.
func (s *Searcher) Find(ctx context.Context, startHist, endHist *feature.History, startOnsets, endOnsets []feature.OnsetEvent) (*LoopPoint, error) {
	if startHist.Len() < s.cfg.MinSnapshots || endHist.Len() < s.cfg.MinSnapshots {
		s.logger.Warn("Capture histories too sparse for loop search", logging.Fields{
			"start_snapshots": startHist.Len(),
			"end_snapshots":   endHist.Len(),
			"min_snapshots":   s.cfg.MinSnapshots,
		})
		return nil, ErrInsufficientData
	}

	candidates, err := s.structuralPass(ctx, startHist, endHist)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	candidates = s.selectTop(candidates)

	refined, err := s.finePass(ctx, candidates, startHist, endHist)
	if err != nil {
		return nil, err
	}
	if len(refined) == 0 {
		return nil, ErrNoMatch
	}

	winner := s.pickCluster(refined)

	startTime := s.refineToSamples(winner, startOnsets, endOnsets)

	lp := &LoopPoint{
		EndTime:   winner.endTime,
		StartTime: startTime,
		Score:     winner.combinedScore,
	}

	s.logger.Info("Loop point found", logging.Fields{
		"end_time":   lp.EndTime,
		"start_time": lp.StartTime,
		"score":      lp.Score,
		"duration":   lp.EndTime - lp.StartTime,
	})

	return lp, nil
}

// structuralPass steps candidate centers across both capture windows and
// keeps every pair whose wide-window fingerprints match above threshold.
// O(startCandidates x endCandidates), acceptable because the stride keeps
// candidates sparse relative to the capture windows.
func (s *Searcher) structuralPass(ctx context.Context, startHist, endHist *feature.History) ([]Candidate, error) {
	startCenters := s.candidateCenters(startHist)
	endCenters := s.candidateCenters(endHist)

	// Fingerprints are reused across the cross product, so build each
	// center's once.
	startFPs := make([]*fingerprint.Fingerprint, len(startCenters))
	for i, c := range startCenters {
		startFPs[i] = fingerprint.Build(startHist, c, s.cfg.StructuralWindow, fingerprint.WideMinFrames)
	}

	var candidates []Candidate
	for _, endCenter := range endCenters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		endFP := fingerprint.Build(endHist, endCenter, s.cfg.StructuralWindow, fingerprint.WideMinFrames)
		if endFP == nil {
			continue
		}

		for i, startCenter := range startCenters {
			if startFPs[i] == nil || endCenter <= startCenter {
				continue
			}
			m := fingerprint.Compare(endFP, startFPs[i])
			if m.Score >= s.cfg.MatchThreshold {
				candidates = append(candidates, Candidate{
					EndTime:               endCenter,
					StartTime:             startCenter,
					StructuralScore:       m.Score,
					AlignmentOffsetFrames: m.Offset,
				})
			}
		}
	}

	s.logger.Debug("Structural pass complete", logging.Fields{
		"start_centers": len(startCenters),
		"end_centers":   len(endCenters),
		"candidates":    len(candidates),
	})

	return candidates, nil
}

// candidateCenters returns center times stepped at the candidate stride
// across the history's valid span, leaving a half structural window of
// margin at both ends.
func (s *Searcher) candidateCenters(hist *feature.History) []float64 {
	half := s.cfg.StructuralWindow / 2
	first := hist.First() + half
	last := hist.Last() - half

	var centers []float64
	for t := first; t <= last; t += s.cfg.CandidateStride {
		centers = append(centers, t)
	}
	return centers
}

// selectTop keeps the candidates within the score slack of the best,
// sorted descending, capped at MaxCandidates.
func (s *Searcher) selectTop(candidates []Candidate) []Candidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StructuralScore > candidates[j].StructuralScore
	})

	best := candidates[0].StructuralScore
	cut := len(candidates)
	for i, c := range candidates {
		if best-c.StructuralScore > s.cfg.ScoreSlack {
			cut = i
			break
		}
	}
	if cut > s.cfg.MaxCandidates {
		cut = s.cfg.MaxCandidates
	}
	return candidates[:cut]
}

// finePass re-aligns each candidate's start point at FineStep resolution
// using narrow fingerprints, and blends the structural and fine scores.
func (s *Searcher) finePass(ctx context.Context, candidates []Candidate, startHist, endHist *feature.History) ([]refinedCandidate, error) {
	refined := make([]refinedCandidate, 0, len(candidates))

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		endFP := fingerprint.Build(endHist, cand.EndTime, s.cfg.FineWindow, fingerprint.NarrowMinFrames)
		if endFP == nil {
			continue
		}

		bestScore := -1.0
		bestOffset := 0.0
		for off := -s.cfg.FineSearchRange; off <= s.cfg.FineSearchRange+1e-9; off += s.cfg.FineStep {
			startFP := fingerprint.Build(startHist, cand.StartTime+off, s.cfg.FineWindow, fingerprint.NarrowMinFrames)
			if startFP == nil {
				continue
			}
			m := fingerprint.Compare(endFP, startFP)
			if m.Score > bestScore {
				bestScore = m.Score
				bestOffset = off
			}
		}
		if bestScore < 0 {
			continue
		}

		startTime := cand.StartTime + bestOffset
		r := refinedCandidate{
			endTime:         cand.EndTime,
			startTime:       startTime,
			fineScore:       bestScore,
			structuralScore: cand.StructuralScore,
			combinedScore:   0.3*cand.StructuralScore + 0.7*bestScore,
			loopDuration:    cand.EndTime - startTime,
		}
		refined = append(refined, r)

		s.logger.Debug("Refined candidate", logging.Fields{
			"end_time":       r.endTime,
			"start_time":     r.startTime,
			"fine_score":     r.fineScore,
			"combined_score": r.combinedScore,
			"loop_duration":  r.loopDuration,
		})
	}

	return refined, nil
}

// cluster tracks a group of refined candidates with similar loop durations
// and its best-scoring member.
type cluster struct {
	duration float64
	best     refinedCandidate
}

// pickCluster groups candidates by loop duration and ranks the groups by a
// criterion that trades fine score against loop length: longer loops win
// ties because a technically perfect 3-second loop is a worse listening
// experience than a slightly rougher 90-second one.
func (s *Searcher) pickCluster(refined []refinedCandidate) refinedCandidate {
	var clusters []cluster
	for _, r := range refined {
		placed := false
		for i := range clusters {
			if math.Abs(clusters[i].duration-r.loopDuration) <= s.cfg.ClusterDurationSlack {
				if r.fineScore > clusters[i].best.fineScore {
					clusters[i].best = r
				}
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, cluster{duration: r.loopDuration, best: r})
		}
	}

	winner := clusters[0]
	for _, c := range clusters[1:] {
		delta := (c.best.fineScore - winner.best.fineScore) +
			(c.best.loopDuration-winner.best.loopDuration)*s.cfg.DurationWeight
		if delta > 0 {
			winner = c
		}
	}

	s.logger.Debug("Cluster selection complete", logging.Fields{
		"clusters":        len(clusters),
		"winner_duration": winner.best.loopDuration,
		"winner_score":    winner.best.fineScore,
	})

	return winner.best
}

// refineToSamples nudges the winner's start time by cross-correlating the
// raw waveforms of the onsets nearest the loop points. Chroma matching
// bottoms out around 20 ms; this pass pushes alignment error below one
// audio buffer period, which is what keeps the seam click-free.
func (s *Searcher) refineToSamples(winner refinedCandidate, startOnsets, endOnsets []feature.OnsetEvent) float64 {
	startOnset := nearestOnset(startOnsets, winner.startTime)
	endOnset := nearestOnset(endOnsets, winner.endTime)
	if startOnset == nil || endOnset == nil ||
		len(startOnset.RawSamples) == 0 || len(endOnset.RawSamples) == 0 {
		return winner.startTime
	}

	maxLag := int(s.cfg.MaxSampleLag * float64(s.cfg.SampleRate))
	n := min(len(startOnset.RawSamples), len(endOnset.RawSamples))
	if n/4 < maxLag {
		maxLag = n / 4
	}
	if maxLag <= 0 {
		return winner.startTime
	}

	bestLag := bestAlignmentLag(endOnset.RawSamples, startOnset.RawSamples, maxLag)

	adjusted := winner.startTime + float64(bestLag)/float64(s.cfg.SampleRate)
	s.logger.Debug("Sample-level refinement", logging.Fields{
		"best_lag":       bestLag,
		"adjustment_sec": adjusted - winner.startTime,
	})
	if adjusted < 0 {
		return winner.startTime
	}
	return adjusted
}

// nearestOnset returns the onset closest in time to t, or nil when none
// were captured.
func nearestOnset(onsets []feature.OnsetEvent, t float64) *feature.OnsetEvent {
	if len(onsets) == 0 {
		return nil
	}
	bestIdx := 0
	bestDist := math.Abs(onsets[0].Time - t)
	for i := 1; i < len(onsets); i++ {
		d := math.Abs(onsets[i].Time - t)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return &onsets[bestIdx]
}
