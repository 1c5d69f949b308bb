package songcraft

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/igolaizola/songcraft/pkg/intent"
	"github.com/igolaizola/songcraft/pkg/music"
	"github.com/igolaizola/songcraft/pkg/musicgen"
	"github.com/igolaizola/songcraft/pkg/session"
	"github.com/igolaizola/songcraft/pkg/synth"
)

type Config struct {
	Debug bool
	Proxy string

	LLMKey   string
	LLMURL   string
	LLMModel string

	ModelURL     string
	ModelToken   string
	ModelName    string
	ModelOptions map[string]string
	ModelTimeout time.Duration
}

// Compose generates music from a description, refines it with each feedback
// in order and copies the resulting clips to the output. When output is a
// folder every take is kept, otherwise only the last one.
func Compose(ctx context.Context, cfg *Config, description string, feedback []string, duration int, output string) error {
	if output == "" {
		return fmt.Errorf("songcraft: output is required")
	}
	var transport http.RoundTripper
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return fmt.Errorf("songcraft: invalid proxy URL: %w", err)
		}
		transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	modelTimeout := cfg.ModelTimeout
	if modelTimeout <= 0 {
		modelTimeout = 5 * time.Minute
	}

	extractor, mode := intent.New(&intent.Config{
		Debug:   cfg.Debug,
		Key:     cfg.LLMKey,
		BaseURL: cfg.LLMURL,
		Model:   cfg.LLMModel,
		Client: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: transport,
		},
	})
	model := musicgen.New(&musicgen.Config{
		Debug:   cfg.Debug,
		BaseURL: cfg.ModelURL,
		Token:   cfg.ModelToken,
		Model:   cfg.ModelName,
		Options: cfg.ModelOptions,
		Client: &http.Client{
			Timeout:   modelTimeout,
			Transport: transport,
		},
	})
	syn := synth.New(model, &synth.Config{Debug: cfg.Debug})
	manager := session.New(extractor, syn, &session.Config{Debug: cfg.Debug})
	log.Printf("songcraft: composing in %s mode\n", mode)

	folder := isFolder(output)
	if folder {
		if err := os.MkdirAll(output, 0755); err != nil {
			return fmt.Errorf("songcraft: couldn't create output folder: %w", err)
		}
	}

	id := manager.Create().ID
	st, err := manager.Describe(ctx, id, description, duration)
	if err != nil {
		return err
	}
	if err := save(st, output, folder, 1); err != nil {
		return err
	}
	for i, f := range feedback {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		st, err = manager.Feedback(ctx, id, f, duration)
		if err != nil {
			return err
		}
		if err := save(st, output, folder, i+2); err != nil {
			return err
		}
	}
	return nil
}

func isFolder(output string) bool {
	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(output)
	return err == nil && info.IsDir()
}

func save(st session.State, output string, folder bool, take int) error {
	log.Printf("songcraft: take %d spec: %s\n", take, specString(st.Spec))
	log.Printf("songcraft: take %d prompt: %s\n", take, st.Prompt)
	if st.Audio == nil {
		return fmt.Errorf("songcraft: take %d has no audio", take)
	}
	dst := output
	if folder {
		dst = filepath.Join(output, fmt.Sprintf("take-%d.wav", take))
	}
	if err := copyFile(st.Audio.Path, dst); err != nil {
		return err
	}
	log.Printf("songcraft: take %d saved to %s\n", take, dst)
	return nil
}

func specString(s *music.Spec) string {
	if s == nil {
		return ""
	}
	return s.String()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("songcraft: couldn't open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("songcraft: couldn't create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("songcraft: couldn't copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("songcraft: couldn't close %s: %w", dst, err)
	}
	return nil
}
