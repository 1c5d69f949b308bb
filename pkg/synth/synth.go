package synth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/igolaizola/songcraft/pkg/musicgen"
	"github.com/igolaizola/songcraft/pkg/sound"
)

const (
	tokensPerSecond = 50
	maxTokens       = 1500
	temperature     = 1.0
	defaultDuration = 20
	fallbackPrefix  = "generation failed, using fallback audio: "
)

// Model is a text to audio model served remotely.
type Model interface {
	Name() string
	Options() map[string]string
	Load(ctx context.Context, model string, options map[string]string) error
	Generate(ctx context.Context, req *musicgen.Request) (*musicgen.Response, error)
}

type Config struct {
	Debug bool
	// Folder for the generated files, defaults to the system temp dir.
	TempDir string
}

type Synthesizer struct {
	model  Model
	debug  bool
	dir    string
	lck    sync.Mutex
	loaded atomic.Bool
}

var _ music.Synthesizer = (*Synthesizer)(nil)

func New(model Model, cfg *Config) *Synthesizer {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Synthesizer{
		model: model,
		debug: cfg.Debug,
		dir:   cfg.TempDir,
	}
}

func (s *Synthesizer) log(format string, args ...interface{}) {
	if s.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Loaded reports whether the model is ready for inference.
func (s *Synthesizer) Loaded() bool {
	return s.loaded.Load()
}

// Model returns the model name.
func (s *Synthesizer) Model() string {
	return s.model.Name()
}

// Load loads the model if it isn't loaded yet. The full options are tried
// first and then only the model name. Failures aren't cached.
func (s *Synthesizer) Load(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}
	s.lck.Lock()
	defer s.lck.Unlock()
	if s.loaded.Load() {
		return nil
	}

	name := s.model.Name()
	log.Printf("synth: loading model %s\n", name)
	err := s.model.Load(ctx, name, s.model.Options())
	if err != nil {
		log.Printf("synth: couldn't load model, retrying with simplified config: %v\n", err)
		if err := s.model.Load(ctx, name, nil); err != nil {
			return fmt.Errorf("synth: couldn't load model %s: %w", name, err)
		}
	}
	s.loaded.Store(true)
	log.Printf("synth: model %s loaded\n", name)
	return nil
}

// Generate synthesizes audio for the spec. Inference and file errors produce
// a fallback clip, only load errors and fallback write errors are returned.
func (s *Synthesizer) Generate(ctx context.Context, spec music.Spec, duration int) (*music.Audio, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = defaultDuration
	}
	audio, err := s.generate(ctx, spec, duration)
	if err != nil {
		log.Printf("synth: couldn't generate music: %v\n", err)
		return s.fallback(duration, err)
	}
	return audio, nil
}

func (s *Synthesizer) generate(ctx context.Context, spec music.Spec, duration int) (*music.Audio, error) {
	prompt := BuildPrompt(spec)
	tokens := TokenBudget(duration)
	log.Printf("synth: generating %ds of music with %d tokens: %s\n", duration, tokens, prompt)

	resp, err := s.model.Generate(ctx, &musicgen.Request{
		Inputs: prompt,
		Parameters: musicgen.Parameters{
			DoSample:     true,
			MaxNewTokens: tokens,
			Temperature:  temperature,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Audio) == 0 {
		return nil, errors.New("synth: model returned no samples")
	}
	if resp.SampleRate <= 0 {
		return nil, fmt.Errorf("synth: model returned invalid sample rate %d", resp.SampleRate)
	}

	path, err := s.write(resp.Audio, resp.SampleRate)
	if err != nil {
		return nil, err
	}
	s.log("synth: generated %s (%.1fs)", path, float64(len(resp.Audio))/float64(resp.SampleRate))
	return &music.Audio{
		Path:       path,
		Prompt:     prompt,
		SampleRate: resp.SampleRate,
		Samples:    len(resp.Audio),
	}, nil
}

func (s *Synthesizer) fallback(duration int, cause error) (*music.Audio, error) {
	samples := sound.Fallback(float64(duration))
	path, err := s.write(samples, sound.FallbackRate)
	if err != nil {
		return nil, fmt.Errorf("synth: couldn't write fallback audio: %w", err)
	}
	return &music.Audio{
		Path:       path,
		Prompt:     fallbackPrefix + cause.Error(),
		SampleRate: sound.FallbackRate,
		Samples:    len(samples),
		Fallback:   true,
	}, nil
}

func (s *Synthesizer) write(samples []float64, rate int) (string, error) {
	f, err := os.CreateTemp(s.dir, "songcraft-*.wav")
	if err != nil {
		return "", fmt.Errorf("synth: couldn't create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("synth: couldn't close temp file: %w", err)
	}
	if err := sound.WriteWAV(path, samples, rate); err != nil {
		return "", err
	}
	return path, nil
}

// BuildPrompt returns the prompt for the audio model.
func BuildPrompt(spec music.Spec) string {
	if spec.Prompt != "" {
		return spec.Prompt
	}
	var parts []string
	if spec.Style != "" {
		parts = append(parts, spec.Style+" style")
	}
	if spec.Mood != "" {
		parts = append(parts, spec.Mood+" mood")
	}
	if len(spec.Instruments) > 0 {
		parts = append(parts, "featuring "+strings.Join(spec.Instruments, ", "))
	}
	if spec.Tempo != "" {
		parts = append(parts, spec.Tempo+" tempo")
	}
	if len(parts) == 0 {
		return "Create a beautiful piece of background music"
	}
	return "Create a piece of music with " + strings.Join(parts, ", ")
}

// TokenBudget converts seconds to model tokens, capped at 30 seconds worth.
func TokenBudget(seconds int) int {
	tokens := tokensPerSecond * seconds
	if tokens > maxTokens {
		tokens = maxTokens
	}
	if tokens < 0 {
		tokens = 0
	}
	return tokens
}
