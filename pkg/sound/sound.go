package sound

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

type Analyzer struct {
	mono     []float64
	rate     int
	duration time.Duration
	source   string
}

// NewAnalyzer loads a wav or mp3 file.
func NewAnalyzer(path string) (*Analyzer, error) {
	var samples []float64
	var rate int
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		samples, rate, err = ReadWAV(path)
	case ".mp3":
		samples, rate, err = readMP3(path)
	default:
		return nil, fmt.Errorf("sound: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	a, err := NewSampleAnalyzer(samples, rate)
	if err != nil {
		return nil, err
	}
	a.source = path
	return a, nil
}

// NewSampleAnalyzer analyzes mono samples already in memory.
func NewSampleAnalyzer(samples []float64, rate int) (*Analyzer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("sound: invalid sample rate %d", rate)
	}
	duration := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))
	return &Analyzer{
		mono:     samples,
		rate:     rate,
		duration: duration,
	}, nil
}

func (a *Analyzer) Source() string {
	return a.source
}

func (a *Analyzer) Duration() time.Duration {
	return a.duration
}

func (a *Analyzer) SampleRate() int {
	return a.rate
}

// Peak returns the maximum absolute sample value.
func (a *Analyzer) Peak() float64 {
	var peak float64
	for _, v := range a.mono {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	return peak
}

func (a *Analyzer) windowLength(windowSize time.Duration) int {
	n := int(float64(a.rate) * windowSize.Seconds())
	if n < 1 {
		n = 1
	}
	return n
}

// Resample returns the min and max value of each window.
func (a *Analyzer) Resample(windowSize time.Duration) []float64 {
	samples := a.mono
	windowLength := a.windowLength(windowSize)

	var resampled []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		window := samples[i:end]
		var min, max float64
		for _, v := range window {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		resampled = append(resampled, min)
		resampled = append(resampled, max)
	}
	return resampled
}

func (a *Analyzer) RMS(windowSize time.Duration) []float64 {
	samples := a.mono
	windowLength := a.windowLength(windowSize)

	var rms []float64
	for i := 0; i < len(samples); i += windowLength {
		end := i + windowLength
		if end > len(samples) {
			end = len(samples)
		}
		rms = append(rms, calculateRMS(samples[i:end]))
	}
	return rms
}

func calculateRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var squareSum float64
	for _, sample := range samples {
		squareSum += sample * sample
	}
	meanSquare := squareSum / float64(len(samples))
	return math.Sqrt(meanSquare)
}

func (a *Analyzer) PlotRMS() ([]byte, error) {
	window := 50 * time.Millisecond
	rms := a.RMS(window)
	return createPlot("rms", rms, 0, 1, window.Seconds(), 0.01)
}

func (a *Analyzer) PlotWave(name string) ([]byte, error) {
	window := 50 * time.Millisecond
	resampled := a.Resample(window)
	// Two points (min and max) per window
	return createPlot(name, resampled, -1, 1, window.Seconds()/2, 0.00)
}

func createPlot(name string, data []float64, min, max float64, step float64, line float64) ([]byte, error) {
	p := plot.New()

	p.Y.Min = min
	p.Y.Max = max

	d := time.Duration(float64(len(data)) * step * float64(time.Second)).Round(100 * time.Millisecond)
	p.Title.Text = fmt.Sprintf("%s %s", name, d)
	p.X.Label.Text = "time"
	p.Y.Label.Text = "amplitude"

	l, err := plotter.NewLine(makePoints(data, step))
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create line plotter: %w", err)
	}
	l.LineStyle.Width = vg.Points(1)
	p.Add(l)

	// Threshold line
	if line > 0 {
		hLine := plotter.NewFunction(func(x float64) float64 { return line })
		hLine.Color = color.RGBA{R: 255, A: 255}
		p.Add(hLine)
	}

	c, err := p.WriterTo(4*vg.Inch, 4*vg.Inch, "jpeg")
	if err != nil {
		return nil, fmt.Errorf("sound: couldn't create plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sound: couldn't write plot: %w", err)
	}
	return buf.Bytes(), nil
}

// makePoints spaces the samples step seconds apart.
func makePoints(samples []float64, step float64) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, v := range samples {
		pts[i].X = float64(i) * step
		pts[i].Y = v
	}
	return pts
}

func readMP3(path string) ([]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't open file: %w", err)
	}
	defer file.Close()
	b, err := io.ReadAll(file)
	if err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't read song: %w", err)
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(b))
	if err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't decode mp3: %w", err)
	}

	// go-mp3 always outputs 16-bit little endian stereo.
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("sound: couldn't read sample: %w", err)
	}
	mono := make([]float64, 0, len(pcm)/4)
	for i := 0; i+3 < len(pcm); i += 4 {
		left := int16(pcm[i]) | int16(pcm[i+1])<<8
		right := int16(pcm[i+2]) | int16(pcm[i+3])<<8
		mono = append(mono, (float64(left)+float64(right))/2.0/32768.0)
	}
	return mono, decoder.SampleRate(), nil
}
