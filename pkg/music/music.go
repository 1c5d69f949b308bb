package music

import (
	"context"
	"fmt"
	"strings"
)

// Spec is the structured description of the music a user asked for.
type Spec struct {
	Style       string   `json:"style"`
	Mood        string   `json:"mood"`
	Instruments []string `json:"instruments"`
	Tempo       string   `json:"tempo"`
	Duration    int      `json:"duration"`
	Prompt      string   `json:"music_prompt"`
}

// Clone returns a deep copy of the spec.
func (s Spec) Clone() Spec {
	c := s
	if s.Instruments != nil {
		c.Instruments = append([]string(nil), s.Instruments...)
	}
	return c
}

func (s Spec) String() string {
	return fmt.Sprintf("{s: %s, m: %s, i: [%s], t: %s, d: %d, p: %s}",
		s.Style, s.Mood, strings.Join(s.Instruments, ", "), s.Tempo, s.Duration, s.Prompt)
}

// Audio is a generated clip stored on disk together with the prompt that
// produced it.
type Audio struct {
	Path       string `json:"path"`
	Prompt     string `json:"prompt"`
	SampleRate int    `json:"sample_rate"`
	Samples    int    `json:"samples"`
	Fallback   bool   `json:"fallback"`
}

// Extractor turns free text into a spec and refines it with feedback.
// Implementations never fail: they degrade to a usable spec instead.
type Extractor interface {
	Extract(ctx context.Context, text string) Spec
	Refine(ctx context.Context, previous Spec, feedback string) Spec
}

// Synthesizer renders a spec into an audio clip.
type Synthesizer interface {
	Generate(ctx context.Context, spec Spec, duration int) (*Audio, error)
}
