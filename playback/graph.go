// Package playback schedules sample-accurate loop crossfades against a host
// audio graph. The graph itself is abstract: anything offering buffer-backed
// sources started at absolute clock times and gain parameters with
// absolute-time automation can drive real output; tests use fakes.
package playback

// Clock exposes the host transport clock in seconds. All scheduling is
// expressed in this clock's absolute time, never "now plus delta" measured
// twice.
type Clock interface {
	Now() float64
}

// GainParam is a gain value automatable at absolute clock times.
type GainParam interface {
	SetValueAtTime(value, when float64)
	LinearRampToValueAtTime(value, when float64)
}

// Source is a single-use playback source over the engine's track buffer.
// Start begins playback at absolute clock time when, from the given buffer
// offset in seconds. A source can be started and stopped once.
type Source interface {
	Start(when, offset float64)
	Stop(when float64)
}

// Graph is the host audio graph surface the scheduler drives.
type Graph interface {
	// CreateGain creates a gain node routed to the master output.
	CreateGain() GainParam

	// CreateSource creates a fresh playback source for the engine's track,
	// routed through the given gain node.
	CreateSource(gain GainParam) Source

	// SetMasterVolume sets the master output gain immediately.
	SetMasterVolume(v float64)

	// Connect routes the master output to a destination node. The
	// destination type is host-specific.
	Connect(destination any) error
}
