package intent

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/igolaizola/songcraft/pkg/music"
)

const (
	defaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"
	defaultModel   = "glm-4"
)

// Mode identifies the extraction strategy in use.
type Mode string

const (
	Mock   Mode = "mock"
	Remote Mode = "remote"
)

type Config struct {
	Debug   bool
	Key     string
	BaseURL string
	Model   string
	Client  *http.Client
}

// New returns the remote extractor when a key is configured and the keyword
// based mock extractor otherwise.
func New(cfg *Config) (music.Extractor, Mode) {
	if cfg == nil || cfg.Key == "" {
		log.Println("intent: no api key configured, using mock mode")
		return NewMock(), Mock
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	return newRemote(cfg.Key, baseURL, model, client, cfg.Debug), Remote
}

// Degrade returns the spec used when the remote service can't produce one.
func Degrade(text string) music.Spec {
	return music.Spec{
		Style:       "流行",
		Mood:        "轻松",
		Instruments: []string{"钢琴", "鼓"},
		Tempo:       "中等",
		Duration:    defaultDuration,
		Prompt:      "Create a beautiful music piece based on: " + text + ", with pleasant melody and relaxing atmosphere",
	}
}

const defaultDuration = 20
