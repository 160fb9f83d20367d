package audio

import (
	"math"
	"testing"

	goaudio "github.com/go-audio/audio"
)

func TestFromInterleavedMixdown(t *testing.T) {
	// Stereo frames (L, R): mono is the mean.
	pcm := []float64{1.0, 0.0, 0.5, 0.5, -1.0, 1.0}
	s, err := FromInterleaved(pcm, 2, 44100)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, 0.5, 0.0}
	if s.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		if math.Abs(s.PCM[i]-w) > 1e-12 {
			t.Fatalf("frame %d = %f, want %f", i, s.PCM[i], w)
		}
	}
}

func TestFromPlanarMixdown(t *testing.T) {
	planes := [][]float64{
		{1.0, 0.5},
		{0.0, 0.5},
	}
	s, err := FromPlanar(planes, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if s.PCM[0] != 0.5 || s.PCM[1] != 0.5 {
		t.Fatalf("mixdown = %v", s.PCM)
	}

	if _, err := FromPlanar([][]float64{{1}, {1, 2}}, 48000); err == nil {
		t.Fatal("expected error for ragged planes")
	}
}

func TestFromBufferScalesBitDepth(t *testing.T) {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 44100},
		Data:           []int{16384, -32768},
		SourceBitDepth: 16,
	}
	s, err := FromBuffer(buf)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.PCM[0]-0.5) > 1e-9 {
		t.Fatalf("scaled sample = %f, want 0.5", s.PCM[0])
	}
	if math.Abs(s.PCM[1]+1.0) > 1e-9 {
		t.Fatalf("scaled sample = %f, want -1", s.PCM[1])
	}
	if s.SampleRate != 44100 {
		t.Fatalf("sample rate = %d", s.SampleRate)
	}
}

func TestDurationAndIndexAt(t *testing.T) {
	s, err := FromMono(make([]float64, 44100), 44100)
	if err != nil {
		t.Fatal(err)
	}
	if s.Duration() != 1.0 {
		t.Fatalf("Duration() = %f, want 1", s.Duration())
	}
	if got := s.IndexAt(0.5); got != 22050 {
		t.Fatalf("IndexAt(0.5) = %d, want 22050", got)
	}
	if got := s.IndexAt(-1); got != 0 {
		t.Fatalf("IndexAt(-1) = %d, want clamp to 0", got)
	}
	if got := s.IndexAt(99); got != 44100 {
		t.Fatalf("IndexAt(99) = %d, want clamp to 44100", got)
	}
}

func TestWindowZeroPadsBeforeStart(t *testing.T) {
	s, err := FromMono([]float64{1, 2, 3, 4}, 8000)
	if err != nil {
		t.Fatal(err)
	}

	got := s.Window(2, 4)
	want := []float64{0, 0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Window(2, 4) = %v, want %v", got, want)
		}
	}

	full := s.Window(4, 4)
	for i, w := range []float64{1, 2, 3, 4} {
		if full[i] != w {
			t.Fatalf("Window(4, 4) = %v", full)
		}
	}
}

func TestEmptyInputsRejected(t *testing.T) {
	if _, err := FromMono(nil, 44100); err == nil {
		t.Fatal("expected error for empty PCM")
	}
	if _, err := FromMono([]float64{1}, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := FromBuffer(nil); err == nil {
		t.Fatal("expected error for nil buffer")
	}
}
