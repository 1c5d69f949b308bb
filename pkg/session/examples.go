package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// Example is a preset description offered as a shortcut.
type Example struct {
	Name        string `json:"name" yaml:"name" csv:"name"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty" csv:"icon"`
	Description string `json:"description" yaml:"description" csv:"description"`
}

// DefaultExamples are the built-in presets.
var DefaultExamples = []Example{
	{Name: "游戏配乐", Icon: "🎮", Description: "电子游戏背景音乐，欢快活泼，有电子合成器和鼓点"},
	{Name: "悲伤钢琴", Icon: "😢", Description: "悲伤的钢琴曲，缓慢的节奏，表达失落的情感"},
	{Name: "中国古风", Icon: "🏮", Description: "中国古风音乐，使用古筝和笛子，优雅传统"},
	{Name: "激昂战斗", Icon: "⚡", Description: "激昂的战斗配乐，强烈的节奏，使用管弦乐和打击乐"},
}

// LoadExamples reads presets from a json, yaml or csv file.
func LoadExamples(file string) ([]Example, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("session: couldn't read examples file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file))
	var unmarshal func([]byte) ([]*Example, error)
	switch ext {
	case ".json":
		unmarshal = func(b []byte) ([]*Example, error) {
			var es []*Example
			if err := json.Unmarshal(b, &es); err != nil {
				return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
			}
			return es, nil
		}
	case ".yaml", ".yml":
		unmarshal = func(b []byte) ([]*Example, error) {
			var es []*Example
			if err := yaml.Unmarshal(b, &es); err != nil {
				return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
			}
			return es, nil
		}
	case ".csv":
		unmarshal = func(b []byte) ([]*Example, error) {
			var es []*Example
			if err := gocsv.UnmarshalBytes(b, &es); err != nil {
				return nil, fmt.Errorf("couldn't unmarshal items: %w", err)
			}
			return es, nil
		}
	default:
		return nil, fmt.Errorf("session: unsupported examples format: %s", ext)
	}
	items, err := unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("session: couldn't unmarshal examples: %w", err)
	}

	var examples []Example
	seen := map[string]struct{}{}
	for _, e := range items {
		if e == nil || e.Name == "" || strings.TrimSpace(e.Description) == "" {
			log.Println("session: skipping empty example")
			continue
		}
		if _, ok := seen[e.Name]; ok {
			log.Printf("session: skipping duplicated example %s\n", e.Name)
			continue
		}
		seen[e.Name] = struct{}{}
		examples = append(examples, *e)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("session: no examples found in file")
	}
	return examples, nil
}
