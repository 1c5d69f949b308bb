package sound

import (
	"time"
)

// HasFadeOut reports whether the loudness consistently decreases during the
// last second of audio.
func (a *Analyzer) HasFadeOut() bool {
	rmsWindow := 100 * time.Millisecond
	fadeOutWindow := 1 * time.Second
	analysisWindow := int(fadeOutWindow.Seconds() / rmsWindow.Seconds())
	rms := a.RMS(rmsWindow)
	if len(rms) < 2 {
		return false
	}
	if len(rms) > analysisWindow {
		rms = rms[len(rms)-analysisWindow:]
	}

	// Count the windows that aren't quieter than the previous one
	var count int
	for i := 1; i < len(rms); i++ {
		inc := rms[i] - rms[i-1]
		if inc > -0.001 {
			count++
		}
	}
	return count <= 1
}
