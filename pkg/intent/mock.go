package intent

import (
	"context"
	"strings"

	"github.com/igolaizola/songcraft/pkg/music"
)

const (
	tempoFast   = "快速"
	tempoMedium = "中等"
	tempoSlow   = "慢速"
)

type group struct {
	name     string
	keywords []string
	spec     music.Spec
}

// groups are checked in order, the first match wins.
var groups = []group{
	{
		name:     "happy",
		keywords: []string{"快乐", "欢快", "开心", "愉快", "happy", "upbeat", "cheerful", "joyful"},
		spec: music.Spec{
			Style:       "流行",
			Mood:        "欢快",
			Instruments: []string{"钢琴", "鼓", "贝斯"},
			Tempo:       tempoFast,
			Duration:    defaultDuration,
			Prompt:      "Happy and upbeat pop music with piano melody, drums and bass, cheerful atmosphere, fast tempo",
		},
	},
	{
		name:     "sad",
		keywords: []string{"悲伤", "伤心", "忧郁", "伤感", "sad", "melancholic", "melancholy", "sorrowful"},
		spec: music.Spec{
			Style:       "古典",
			Mood:        "悲伤",
			Instruments: []string{"钢琴", "小提琴"},
			Tempo:       tempoSlow,
			Duration:    defaultDuration,
			Prompt:      "Sad and emotional classical music with piano and violin, melancholic atmosphere, slow tempo",
		},
	},
	{
		name:     "battle",
		keywords: []string{"战斗", "激昂", "史诗", "激烈", "battle", "epic", "intense", "heroic"},
		spec: music.Spec{
			Style:       "史诗音乐",
			Mood:        "激昂",
			Instruments: []string{"管弦乐", "鼓", "合唱"},
			Tempo:       tempoFast,
			Duration:    defaultDuration,
			Prompt:      "Epic and intense battle music with orchestra, powerful drums and choir, heroic atmosphere, fast tempo",
		},
	},
	{
		name:     "chinese",
		keywords: []string{"中国", "古风", "传统", "古筝", "chinese", "guzheng"},
		spec: music.Spec{
			Style:       "中国古风",
			Mood:        "优雅",
			Instruments: []string{"古筝", "笛子", "二胡"},
			Tempo:       tempoMedium,
			Duration:    defaultDuration,
			Prompt:      "Traditional Chinese music with guzheng, flute and erhu, elegant and cultural atmosphere, medium tempo",
		},
	},
}

var (
	fasterCues = []string{"快", "faster", "speed up"}
	slowerCues = []string{"慢", "slower", "slow down"}
)

type mock struct{}

// NewMock returns the keyword based extractor used when no credentials are
// available.
func NewMock() music.Extractor {
	return &mock{}
}

func (m *mock) Extract(_ context.Context, text string) music.Spec {
	lower := strings.ToLower(text)
	for _, g := range groups {
		if containsAny(lower, g.keywords) {
			return g.spec.Clone()
		}
	}
	return music.Spec{
		Style:       "流行",
		Mood:        "轻松",
		Instruments: []string{"钢琴", "吉他"},
		Tempo:       tempoMedium,
		Duration:    defaultDuration,
		Prompt:      "Beautiful background music based on the description: " + text + ", pleasant and relaxing atmosphere, medium tempo",
	}
}

// Refine only understands tempo changes and rewrites the exact tempo phrases
// of the prompt, other phrasings are left untouched.
func (m *mock) Refine(_ context.Context, previous music.Spec, feedback string) music.Spec {
	spec := previous.Clone()
	lower := strings.ToLower(feedback)
	switch {
	case containsAny(lower, fasterCues):
		spec.Tempo = tempoFast
		spec.Prompt = strings.NewReplacer(
			"medium tempo", "fast tempo",
			"slow tempo", "fast tempo",
		).Replace(spec.Prompt)
	case containsAny(lower, slowerCues):
		spec.Tempo = tempoSlow
		spec.Prompt = strings.NewReplacer(
			"fast tempo", "slow tempo",
			"medium tempo", "slow tempo",
		).Replace(spec.Prompt)
	}
	return spec
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
