// Package audio holds the decoded PCM buffer the engine analyzes and plays.
// Buffers are mixed down to mono float64 in [-1, 1]; the engine references
// them for its whole lifetime and never copies or mutates them.
package audio

import (
	"fmt"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Samples is an immutable mono PCM buffer with its sample rate.
type Samples struct {
	PCM        []float64 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// FromMono wraps an already-mono normalized PCM slice without copying.
func FromMono(pcm []float64, sampleRate int) (*Samples, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty PCM buffer")
	}
	return &Samples{PCM: pcm, SampleRate: sampleRate}, nil
}

// FromInterleaved mixes an interleaved multi-channel buffer down to mono.
func FromInterleaved(pcm []float64, channels, sampleRate int) (*Samples, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive: %d", channels)
	}
	if channels == 1 {
		return FromMono(pcm, sampleRate)
	}
	frames := len(pcm) / channels
	if frames == 0 {
		return nil, fmt.Errorf("empty PCM buffer")
	}
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += pcm[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return FromMono(mono, sampleRate)
}

// FromPlanar mixes per-channel planes down to mono. All planes must have
// equal length.
func FromPlanar(planes [][]float64, sampleRate int) (*Samples, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("no channel planes")
	}
	frames := len(planes[0])
	for c, plane := range planes {
		if len(plane) != frames {
			return nil, fmt.Errorf("channel %d length %d does not match channel 0 length %d", c, len(plane), frames)
		}
	}
	if len(planes) == 1 {
		return FromMono(planes[0], sampleRate)
	}
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for _, plane := range planes {
			sum += plane[i]
		}
		mono[i] = sum / float64(len(planes))
	}
	return FromMono(mono, sampleRate)
}

// FromBuffer converts a go-audio integer buffer, scaling by its source bit
// depth so samples land in [-1, 1].
func FromBuffer(buf *goaudio.IntBuffer) (*Samples, error) {
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("nil audio buffer")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("empty audio buffer")
	}
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) * scale
	}
	return FromMono(mono, buf.Format.SampleRate)
}

// Len returns the number of mono frames.
func (s *Samples) Len() int {
	return len(s.PCM)
}

// Duration returns the buffer length in seconds.
func (s *Samples) Duration() float64 {
	return float64(len(s.PCM)) / float64(s.SampleRate)
}

// DurationTime returns the buffer length as a time.Duration.
func (s *Samples) DurationTime() time.Duration {
	return time.Duration(float64(time.Second) * s.Duration())
}

// IndexAt converts a time in seconds to a frame index, clamped to the buffer.
func (s *Samples) IndexAt(t float64) int {
	idx := int(t * float64(s.SampleRate))
	if idx < 0 {
		return 0
	}
	if idx > len(s.PCM) {
		return len(s.PCM)
	}
	return idx
}

// Window returns the n samples ending at the given frame index. Regions
// before the start of the buffer are zero padded so early analysis frames
// stay full length.
func (s *Samples) Window(endIndex, n int) []float64 {
	out := make([]float64, n)
	start := endIndex - n
	for i := 0; i < n; i++ {
		idx := start + i
		if idx >= 0 && idx < len(s.PCM) {
			out[i] = s.PCM[idx]
		}
	}
	return out
}
