package sound

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestFallback(t *testing.T) {
	samples := Fallback(10)
	if len(samples) != 441000 {
		t.Fatalf("len(Fallback(10)) = %d; want 441000", len(samples))
	}
	fade := 4410
	env := Envelope(len(samples), fade)
	for i := 1; i < fade; i++ {
		if env[i] < env[i-1] {
			t.Fatalf("fade in not monotonic at %d: %v < %v", i, env[i], env[i-1])
		}
		j := len(env) - fade + i
		if env[j] > env[j-1] {
			t.Fatalf("fade out not monotonic at %d: %v > %v", j, env[j], env[j-1])
		}
	}
	if env[0] != 0 || env[len(env)-1] != 0 {
		t.Fatalf("envelope edges = %v, %v; want 0, 0", env[0], env[len(env)-1])
	}
	if env[fade] != 1 || env[len(env)/2] != 1 {
		t.Fatalf("envelope body = %v; want 1", env[fade])
	}
	for i, v := range samples {
		if math.Abs(v) > 1 {
			t.Fatalf("sample %d = %v; want within [-1, 1]", i, v)
		}
	}
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		n, fade int
		want    []float64
	}{
		{5, 0, []float64{1, 1, 1, 1, 1}},
		{6, 3, []float64{0, 0.5, 1, 1, 0.5, 0}},
		{4, 10, []float64{0, 1, 1, 0}},
		{0, 3, nil},
	}
	for _, tt := range tests {
		got := Envelope(tt.n, tt.fade)
		if len(got) != len(tt.want) {
			t.Fatalf("Envelope(%d, %d) = %v; want %v", tt.n, tt.fade, got, tt.want)
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-9 {
				t.Fatalf("Envelope(%d, %d) = %v; want %v", tt.n, tt.fade, got, tt.want)
			}
		}
	}
}

func TestChord(t *testing.T) {
	tones := []Tone{{Frequency: 1, Amplitude: 0.5}}
	got := Chord(tones, 1, 4)
	want := []float64{0, 0.5, 0, -0.5}
	if len(got) != len(want) {
		t.Fatalf("Chord() = %v; want %v", got, want)
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("Chord() = %v; want %v", got, want)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	samples := Chord(fallbackChord, 0.5, 8000)
	if err := WriteWAV(path, samples, 8000); err != nil {
		t.Fatalf("WriteWAV() err = %v; want nil", err)
	}
	got, rate, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV() err = %v; want nil", err)
	}
	if rate != 8000 {
		t.Fatalf("rate = %d; want 8000", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d; want %d", len(got), len(samples))
	}
	for i := range got {
		if math.Abs(got[i]-samples[i]) > 1e-3 {
			t.Fatalf("sample %d = %v; want %v", i, got[i], samples[i])
		}
	}
}

func TestWriteWAVInvalidRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := WriteWAV(path, []float64{0}, 0); err == nil {
		t.Fatal("WriteWAV(rate 0) err = nil; want error")
	}
}

func TestAnalyzer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.wav")
	if err := WriteWAV(path, Fallback(2), FallbackRate); err != nil {
		t.Fatalf("WriteWAV() err = %v; want nil", err)
	}
	a, err := NewAnalyzer(path)
	if err != nil {
		t.Fatalf("NewAnalyzer(%q) err = %v; want nil", path, err)
	}
	if a.Duration() != 2*time.Second {
		t.Errorf("Duration() = %s; want 2s", a.Duration())
	}
	if a.SampleRate() != FallbackRate {
		t.Errorf("SampleRate() = %d; want %d", a.SampleRate(), FallbackRate)
	}
	if p := a.Peak(); p > 0.71 || p < 0.5 {
		t.Errorf("Peak() = %v; want within [0.5, 0.71]", p)
	}
	// 2s in 50ms windows, two points each
	if got := len(a.Resample(50 * time.Millisecond)); got != 80 {
		t.Errorf("len(Resample()) = %d; want 80", got)
	}
	if got := len(a.RMS(100 * time.Millisecond)); got != 20 {
		t.Errorf("len(RMS()) = %d; want 20", got)
	}
	b, err := a.PlotWave("wave")
	if err != nil {
		t.Fatalf("PlotWave() err = %v; want nil", err)
	}
	// JPEG start of image marker
	if !bytes.HasPrefix(b, []byte{0xff, 0xd8}) {
		t.Fatalf("PlotWave() isn't a jpeg")
	}
}

func TestAnalyzerUnsupported(t *testing.T) {
	if _, err := NewAnalyzer("song.flac"); err == nil {
		t.Fatal("NewAnalyzer(flac) err = nil; want error")
	}
}

func TestHasFadeOut(t *testing.T) {
	rate := 8000
	tone := []Tone{{Frequency: 440, Amplitude: 0.5}}
	steady := Chord(tone, 3, rate)
	fading := Chord(tone, 3, rate)
	start := len(fading) - rate
	for i := start; i < len(fading); i++ {
		fading[i] *= 1 - float64(i-start)/float64(rate)
	}
	tests := []struct {
		name    string
		samples []float64
		want    bool
	}{
		{"steady", steady, false},
		{"fading", fading, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewSampleAnalyzer(tt.samples, rate)
			if err != nil {
				t.Fatalf("NewSampleAnalyzer() err = %v; want nil", err)
			}
			if got := a.HasFadeOut(); got != tt.want {
				t.Fatalf("HasFadeOut() = %v; want %v", got, tt.want)
			}
		})
	}
}
