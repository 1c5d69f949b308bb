package analyze

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/igolaizola/songcraft/pkg/sound"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.wav")
	if err := sound.WriteWAV(input, sound.Fallback(1), sound.FallbackRate); err != nil {
		t.Fatalf("WriteWAV() err = %v; want nil", err)
	}
	output := filepath.Join(dir, "plots")
	if err := Run(context.Background(), &Config{Input: input, Output: output}); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	for _, name := range []string{"clip-rms.jpg", "clip-wave.jpg"} {
		if _, err := os.Stat(filepath.Join(output, name)); err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
}

func TestRunErrors(t *testing.T) {
	if err := Run(context.Background(), &Config{}); err == nil {
		t.Fatal("Run(no input) err = nil; want error")
	}
	if err := Run(context.Background(), &Config{Input: "missing.wav"}); err == nil {
		t.Fatal("Run(missing file) err = nil; want error")
	}
}
