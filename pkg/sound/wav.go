package sound

import (
	"fmt"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// sliceStreamer streams mono samples to both channels.
type sliceStreamer struct {
	buf []float64
	pos int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.buf) {
		return 0, false
	}
	for n < len(samples) && s.pos < len(s.buf) {
		samples[n][0] = s.buf[s.pos]
		samples[n][1] = s.buf[s.pos]
		n++
		s.pos++
	}
	return n, true
}

func (s *sliceStreamer) Err() error {
	return nil
}

// WriteWAV writes the samples as a 16-bit PCM mono wav file.
func WriteWAV(path string, samples []float64, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sound: couldn't create %s: %w", path, err)
	}
	defer f.Close()
	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: 1,
		Precision:   2,
	}
	if err := wav.Encode(f, &sliceStreamer{buf: samples}, format); err != nil {
		return fmt.Errorf("sound: couldn't encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sound: couldn't close %s: %w", path, err)
	}
	return nil
}

// ReadWAV decodes a wav file and returns its samples mixed down to mono.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't open %s: %w", path, err)
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("sound: couldn't decode %s: %w", path, err)
	}
	defer s.Close()

	samples := make([]float64, 0, s.Len())
	buf := make([][2]float64, 512)
	for {
		n, ok := s.Stream(buf)
		for _, v := range buf[:n] {
			samples = append(samples, (v[0]+v[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't read %s: %w", path, err)
	}
	return samples, int(format.SampleRate), nil
}
