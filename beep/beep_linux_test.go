//go:build linux

package beep

import "testing"

// Disabled cues must return before touching the sample tables or the
// sound server, so headless runs stay silent.
func TestDisabledCuesDoNotInitSound(t *testing.T) {
	Disable()

	PlayStart()
	PlayEnd()
	PlayError()

	if startSamples != nil || endSamples != nil || errorSamples != nil {
		t.Error("disabled cue generated samples")
	}
}
