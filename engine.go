// Package seamless turns a single decoded track into a gaplessly looping
// one. Analysis finds a point near the end of the track that crossfades
// cleanly back to a point near the beginning; playback schedules that
// crossfade with sample accuracy against the host audio clock. Tracks
// where no convincing match exists fall back to looping to absolute time
// zero, so the engine always loops something.
package seamless

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/auralab/seamless/analysis"
	"github.com/auralab/seamless/audio"
	"github.com/auralab/seamless/logging"
	"github.com/auralab/seamless/playback"
	"github.com/auralab/seamless/search"
	"github.com/auralab/seamless/store"
)

// Engine owns one track's analysis and playback lifecycle.
type Engine struct {
	samples   *audio.Samples
	cfg       *Config
	scheduler *playback.Scheduler

	cache *store.DB

	mu           sync.Mutex
	loopPoint    *search.LoopPoint
	analysisDone bool
	progress     analysis.Progress

	logger logging.Logger
}

// New creates an engine over decoded samples and a host clock/graph pair.
func New(samples *audio.Samples, clock playback.Clock, graph playback.Graph, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if samples.Len() == 0 {
		return nil, fmt.Errorf("empty sample buffer")
	}
	sched, err := playback.NewScheduler(clock, graph, samples.Duration(), cfg.playbackConfig())
	if err != nil {
		return nil, err
	}
	return &Engine{
		samples:   samples,
		cfg:       cfg,
		scheduler: sched,
		logger: logging.WithFields(logging.Fields{
			"component": "engine",
		}),
	}, nil
}

// WithStore attaches a loop point cache. Cached results short-circuit
// RunAnalysis; fresh results are persisted after a successful search.
func (e *Engine) WithStore(db *store.DB) *Engine {
	e.cache = db
	return e
}

// Connect attaches the engine's output to the host destination.
func (e *Engine) Connect(destination any) error {
	return e.scheduler.Connect(destination)
}

// SetVolume sets the master output volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.scheduler.SetMasterVolume(v)
}

// Play starts playback from the given buffer offset in seconds.
func (e *Engine) Play(offset float64) {
	e.scheduler.Play(offset)
}

// Pause stops playback, remembering the position for the next Play.
func (e *Engine) Pause() {
	e.scheduler.Pause()
}

// Stop stops playback and resets the position to zero.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// CurrentTime reports the playback position within the buffer, in seconds.
func (e *Engine) CurrentTime() float64 {
	return e.scheduler.Position()
}

// PausedPosition reports where Pause left the playhead.
func (e *Engine) PausedPosition() float64 {
	return e.scheduler.PausedPosition()
}

// LoopCount reports how many crossfades have completed.
func (e *Engine) LoopCount() int {
	return e.scheduler.LoopCount()
}

// SetOnLoop installs a callback fired once per completed loop.
func (e *Engine) SetOnLoop(fn func(count int)) {
	e.scheduler.SetOnLoop(fn)
}

// SetProgress installs an optional analysis progress callback. Call
// before RunAnalysis.
func (e *Engine) SetProgress(fn analysis.Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = fn
}

// LoopPoint returns the analysis result, nil until RunAnalysis completes
// or when the track loops to start.
func (e *Engine) LoopPoint() *search.LoopPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopPoint
}

// Run drives the playback monitor until ctx is cancelled. Playback works
// without it only if the host calls Tick itself.
func (e *Engine) Run(ctx context.Context) {
	e.scheduler.Run(ctx)
}

// Tick advances the playback monitor one step.
func (e *Engine) Tick() {
	e.scheduler.Tick()
}

// RunAnalysis captures, searches and installs the track's loop point.
// It is safe to call while playback is running; the scheduler keeps
// looping to start until the result lands. A nil result with nil error
// means analysis finished and the track has no better loop than its own
// start. Only context cancellation and real failures surface as errors.
func (e *Engine) RunAnalysis(ctx context.Context) (*search.LoopPoint, error) {
	e.mu.Lock()
	if e.analysisDone {
		lp := e.loopPoint
		e.mu.Unlock()
		return lp, nil
	}
	progress := e.progress
	e.mu.Unlock()

	if e.cache != nil {
		hash := store.HashSamples(e.samples)
		if lp, ok, err := e.cache.Get(hash); err != nil {
			e.logger.Warn("Loop point cache read failed", logging.Fields{"error": err.Error()})
		} else if ok {
			e.logger.Info("Loop point served from cache", logging.Fields{
				"track_hash": hash,
				"end_time":   lp.EndTime,
				"start_time": lp.StartTime,
			})
			e.install(lp)
			return lp, nil
		}
	}

	orch, err := analysis.NewOrchestrator(e.samples, e.cfg.analysisConfig())
	if err != nil {
		return nil, err
	}
	if progress != nil {
		orch.SetProgress(progress)
	}

	start, end, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, analysis.ErrShortTrack) {
			e.install(nil)
			return nil, nil
		}
		return nil, err
	}

	searcher, err := search.NewSearcher(e.cfg.searchConfig(e.samples.SampleRate))
	if err != nil {
		return nil, err
	}
	lp, err := searcher.Find(ctx, start.History, end.History, start.Onsets, end.Onsets)
	if err != nil {
		if errors.Is(err, search.ErrInsufficientData) || errors.Is(err, search.ErrNoMatch) {
			e.logger.Info("No loop point found, track loops to start", logging.Fields{
				"reason": err.Error(),
			})
			e.install(nil)
			return nil, nil
		}
		return nil, err
	}

	e.install(lp)
	if e.cache != nil {
		if err := e.cache.Put(store.HashSamples(e.samples), lp); err != nil {
			e.logger.Warn("Loop point cache write failed", logging.Fields{"error": err.Error()})
		}
	}
	return lp, nil
}

func (e *Engine) install(lp *search.LoopPoint) {
	e.mu.Lock()
	e.loopPoint = lp
	e.analysisDone = true
	e.mu.Unlock()
	e.scheduler.SetLoopPoint(lp, true)
}
