package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/auralab/seamless/logging"
	"github.com/auralab/seamless/search"
)

// State is the scheduler's playback state.
type State int

const (
	Stopped State = iota
	Playing
	CrossfadeScheduled
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case CrossfadeScheduled:
		return "crossfade_scheduled"
	default:
		return "unknown"
	}
}

// Config holds scheduler tuning.
type Config struct {
	CrossfadeDuration float64       `json:"crossfade_duration"` // seconds
	MonitorInterval   time.Duration `json:"monitor_interval"`
	LookaheadMax      float64       `json:"lookahead_max"` // schedule within this of the loop point
	LookaheadMin      float64       `json:"lookahead_min"` // the comfortable scheduling margin
}

// DefaultConfig returns the scheduler defaults. The 2 second lookahead
// exists because building a source and issuing automation has setup
// latency; scheduling closer to the deadline risks missing the sample.
func DefaultConfig() Config {
	return Config{
		CrossfadeDuration: 0.5,
		MonitorInterval:   100 * time.Millisecond,
		LookaheadMax:      2.0,
		LookaheadMin:      0.5,
	}
}

// Validate checks config consistency.
func (c *Config) Validate() error {
	if c.CrossfadeDuration <= 0 {
		return fmt.Errorf("crossfade duration must be positive: %f", c.CrossfadeDuration)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive: %v", c.MonitorInterval)
	}
	if c.LookaheadMax <= c.LookaheadMin {
		return fmt.Errorf("lookahead max must exceed min")
	}
	return nil
}

// Scheduler owns two alternating (gain, source) paths feeding the master
// output and crossfades between them at loop points. All mutation happens
// under one lock; the monitor is advanced by Tick, either externally or by
// Run's internal ticker.
type Scheduler struct {
	mu    sync.Mutex
	clock Clock
	graph Graph
	cfg   Config

	trackDuration float64
	loopPoint     *search.LoopPoint
	analysisDone  bool

	gains   [2]GainParam
	sources [2]Source
	active  int

	state          State
	anchorClock    float64 // host clock at the active source's start
	anchorOffset   float64 // buffer offset at the active source's start
	pausedAt       float64
	pendingAnchor  float64 // incoming source's absolute start time
	pendingOffset  float64 // incoming source's buffer offset
	crossfadeEndAt float64 // host clock time when the swap completes
	loopCount      int
	onLoop         func(count int)

	logger logging.Logger
}

// NewScheduler creates a scheduler over the given clock and graph for a
// track of the given duration.
func NewScheduler(clock Clock, graph Graph, trackDuration float64, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	s := &Scheduler{
		clock:         clock,
		graph:         graph,
		cfg:           cfg,
		trackDuration: trackDuration,
		logger: logging.WithFields(logging.Fields{
			"component": "playback_scheduler",
		}),
	}
	s.gains[0] = graph.CreateGain()
	s.gains[1] = graph.CreateGain()
	return s, nil
}

// SetLoopPoint installs the analysis result. A nil loop point with done
// true means analysis finished without a match and the track loops to
// absolute time zero.
func (s *Scheduler) SetLoopPoint(lp *search.LoopPoint, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopPoint = lp
	s.analysisDone = done
}

// SetOnLoop installs the loop-completion notification, fired once per
// completed crossfade.
func (s *Scheduler) SetOnLoop(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoop = fn
}

// Connect routes the graph's master output to a host destination.
func (s *Scheduler) Connect(destination any) error {
	return s.graph.Connect(destination)
}

// SetMasterVolume sets the master output volume, clamped to [0, 1].
func (s *Scheduler) SetMasterVolume(v float64) {
	s.graph.SetMasterVolume(min(max(v, 0), 1))
}

// Play starts playback from the given buffer offset on the active path.
// Any previous sources are detached first.
func (s *Scheduler) Play(offset float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.detachSourcesLocked(now)

	src := s.graph.CreateSource(s.gains[s.active])
	src.Start(now, offset)
	s.sources[s.active] = src

	s.gains[s.active].SetValueAtTime(1, now)
	s.gains[1-s.active].SetValueAtTime(0, now)

	s.anchorClock = now
	s.anchorOffset = offset
	s.state = Playing

	s.logger.Debug("Playback started", logging.Fields{
		"offset": offset,
	})
}

// Pause stops playback, remembering the position for a later Play.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausedAt = s.positionLocked()
	s.teardownLocked()
}

// Stop stops playback and resets the position to zero.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausedAt = 0
	s.teardownLocked()
}

// teardownLocked detaches all sources and clears any scheduled crossfade
// so an in-flight fade is never completed against a detached graph.
func (s *Scheduler) teardownLocked() {
	now := s.clock.Now()
	s.detachSourcesLocked(now)
	s.state = Stopped
}

func (s *Scheduler) detachSourcesLocked(now float64) {
	for i, src := range s.sources {
		if src != nil {
			src.Stop(now)
			s.sources[i] = nil
		}
	}
}

// Position returns the current buffer position in seconds.
func (s *Scheduler) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Scheduler) positionLocked() float64 {
	if s.state == Stopped {
		return s.pausedAt
	}
	return s.clock.Now() - s.anchorClock + s.anchorOffset
}

// PausedPosition returns where Pause left the playhead.
func (s *Scheduler) PausedPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pausedAt
}

// CurrentState returns the playback state.
func (s *Scheduler) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LoopCount returns the number of completed loop crossfades.
func (s *Scheduler) LoopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopCount
}

// Tick advances the monitor once: schedules a crossfade when the loop
// point is close enough, and completes the path swap when a scheduled
// crossfade has finished.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	var fireLoop func(int)
	var fireCount int

	switch s.state {
	case Playing:
		if s.analysisDone {
			s.maybeScheduleLocked()
		}
	case CrossfadeScheduled:
		if s.clock.Now() >= s.crossfadeEndAt {
			s.completeSwapLocked()
			if s.onLoop != nil {
				fireLoop = s.onLoop
				fireCount = s.loopCount
			}
		}
	}
	s.mu.Unlock()

	// Notify outside the lock so the callback can call back in.
	if fireLoop != nil {
		fireLoop(fireCount)
	}
}

// maybeScheduleLocked schedules a crossfade when playback is within the
// lookahead window of the loop point (or of the track end when analysis
// found no loop point). A tick that lands inside the comfortable margin
// still schedules, just with less setup headroom: a host stall should
// degrade to a slightly late fade, never to a crash or a missed loop.
func (s *Scheduler) maybeScheduleLocked() {
	pos := s.positionLocked()

	target := s.trackDuration
	loopStart := 0.0
	if s.loopPoint != nil {
		target = s.loopPoint.EndTime
		loopStart = s.loopPoint.StartTime
	}

	timeUntil := target - pos
	if timeUntil > s.cfg.LookaheadMax {
		return
	}
	if timeUntil < 0.05 {
		// Missed the window entirely (host stall); fade as soon as the
		// graph can honor it.
		timeUntil = 0.05
	}

	s.scheduleCrossfadeLocked(timeUntil, loopStart)
}

// scheduleCrossfadeLocked creates the incoming source on the inactive path,
// starts it at the absolute target time from the loop start offset, and
// ramps the two gains across each other over the crossfade duration. The
// absolute start time is what gives sample accuracy.
func (s *Scheduler) scheduleCrossfadeLocked(timeUntil, loopStart float64) {
	now := s.clock.Now()
	at := now + timeUntil
	fadeEnd := at + s.cfg.CrossfadeDuration

	inactive := 1 - s.active
	src := s.graph.CreateSource(s.gains[inactive])
	src.Start(at, loopStart)
	s.sources[inactive] = src

	s.gains[s.active].SetValueAtTime(1, at)
	s.gains[s.active].LinearRampToValueAtTime(0, fadeEnd)
	s.gains[inactive].SetValueAtTime(0, at)
	s.gains[inactive].LinearRampToValueAtTime(1, fadeEnd)

	// Stop the outgoing source a little after its ramp reaches silence.
	if old := s.sources[s.active]; old != nil {
		old.Stop(fadeEnd + 0.1)
	}

	s.pendingAnchor = at
	s.pendingOffset = loopStart
	s.crossfadeEndAt = fadeEnd
	s.state = CrossfadeScheduled

	s.logger.Debug("Crossfade scheduled", logging.Fields{
		"at":         at,
		"loop_start": loopStart,
		"fade_end":   fadeEnd,
	})
}

// completeSwapLocked makes the incoming path active and re-anchors position
// tracking to the incoming source's absolute start, so Position stays
// continuous across the loop.
func (s *Scheduler) completeSwapLocked() {
	s.sources[s.active] = nil
	s.active = 1 - s.active
	s.anchorClock = s.pendingAnchor
	s.anchorOffset = s.pendingOffset
	s.state = Playing
	s.loopCount++

	s.logger.Debug("Loop crossfade complete", logging.Fields{
		"loop_count": s.loopCount,
	})
}

// Run drives Tick on the monitor interval until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
