package sound

import (
	"math"
	"time"
)

// FallbackRate is the sample rate of the placeholder clip.
const FallbackRate = 44100

const fallbackFade = 100 * time.Millisecond

// C major triad: C4, E4, G4.
var fallbackChord = []Tone{
	{Frequency: 261.63, Amplitude: 0.3},
	{Frequency: 329.63, Amplitude: 0.2},
	{Frequency: 392.00, Amplitude: 0.2},
}

type Tone struct {
	Frequency float64
	Amplitude float64
}

// Chord sums the sine waves of the given tones for the duration in seconds.
func Chord(tones []Tone, duration float64, rate int) []float64 {
	n := int(duration * float64(rate))
	if n <= 0 {
		return nil
	}
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		var v float64
		for _, tone := range tones {
			v += tone.Amplitude * math.Sin(2*math.Pi*tone.Frequency*t)
		}
		samples[i] = v
	}
	return samples
}

// Envelope returns a gain curve of n samples that rises linearly from 0 to 1
// over the first fade samples and falls back to 0 over the last fade samples.
// The fade is capped to half of n.
func Envelope(n, fade int) []float64 {
	if n <= 0 {
		return nil
	}
	if fade > n/2 {
		fade = n / 2
	}
	env := make([]float64, n)
	for i := range env {
		env[i] = 1
	}
	if fade <= 0 {
		return env
	}
	var step float64
	if fade > 1 {
		step = 1 / float64(fade-1)
	}
	for i := 0; i < fade; i++ {
		env[i] = float64(i) * step
		env[n-1-i] = float64(i) * step
	}
	return env
}

// Fallback generates the placeholder clip played when synthesis fails.
func Fallback(duration float64) []float64 {
	samples := Chord(fallbackChord, duration, FallbackRate)
	env := Envelope(len(samples), int(fallbackFade.Seconds()*FallbackRate))
	for i := range samples {
		samples[i] *= env[i]
	}
	return samples
}
