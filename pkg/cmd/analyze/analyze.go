package analyze

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/igolaizola/songcraft/pkg/sound"
)

type Config struct {
	Debug  bool
	Input  string
	Output string
}

// Run prints information about an audio clip and, if an output folder is
// set, writes its waveform and loudness plots.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("analyze: input is required")
	}
	a, err := sound.NewAnalyzer(cfg.Input)
	if err != nil {
		return err
	}
	fmt.Printf("Duration: %s, sample rate: %d, peak: %.3f, fade out: %v\n",
		a.Duration(), a.SampleRate(), a.Peak(), a.HasFadeOut())

	if cfg.Output == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("analyze: couldn't create output folder: %w", err)
	}

	name := filepath.Base(cfg.Input)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	out := filepath.Join(cfg.Output, name)

	rms, err := a.PlotRMS()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out+"-rms.jpg", rms, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write rms plot: %w", err)
	}
	wave, err := a.PlotWave(name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out+"-wave.jpg", wave, 0644); err != nil {
		return fmt.Errorf("analyze: couldn't write wave plot: %w", err)
	}
	return nil
}
