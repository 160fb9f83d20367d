package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestReadWAVRoundTrip(t *testing.T) {
	const (
		rate  = 22050
		depth = 16
	)
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	n := rate / 2
	data := make([]int, n)
	for i := range data {
		v := 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
		data[i] = int(v * float64(int(1)<<(depth-1)))
	}
	enc := wav.NewEncoder(f, rate, depth, 1, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: depth,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if s.SampleRate != rate {
		t.Fatalf("sample rate = %d, want %d", s.SampleRate, rate)
	}
	if s.Len() != n {
		t.Fatalf("Len() = %d, want %d", s.Len(), n)
	}

	// Quantization aside, the decoded samples match what was written.
	for i := 0; i < n; i += 1000 {
		want := 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
		if math.Abs(s.PCM[i]-want) > 1e-3 {
			t.Fatalf("sample %d = %f, want ~%f", i, s.PCM[i], want)
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAV(path); err == nil {
		t.Fatal("expected error for a non-wav file")
	}
}

func TestBytesToFloat64(t *testing.T) {
	// A truncated trailing sample is dropped, not misread.
	buf := make([]byte, 20)
	if got := bytesToFloat64(buf); len(got) != 2 {
		t.Fatalf("decoded %d samples from 20 bytes, want 2", len(got))
	}
	if got := bytesToFloat64(nil); got != nil {
		t.Fatalf("decoded %v from nil", got)
	}
}
