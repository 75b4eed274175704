package hotkey

import (
	"testing"
	"time"
)

func waitActivation(t *testing.T, tap *Tap) {
	t.Helper()
	select {
	case <-tap.Activations():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for activation")
	}
}

func expectQuiet(t *testing.T, tap *Tap, d time.Duration) {
	t.Helper()
	select {
	case <-tap.Activations():
		t.Fatal("unexpected activation")
	case <-time.After(d):
	}
}

func TestTapFiresOnPress(t *testing.T) {
	fk := NewFake()
	tap := NewTap(fk, 10*time.Millisecond)

	fk.SimKeydown()
	waitActivation(t, tap)
	fk.SimKeyup()
}

func TestHeldKeyActivatesOnce(t *testing.T) {
	fk := NewFake()
	tap := NewTap(fk, 10*time.Millisecond)

	fk.SimKeydown()
	waitActivation(t, tap)

	// Autorepeat while held.
	for i := 0; i < 5; i++ {
		fk.SimKeydown()
		time.Sleep(5 * time.Millisecond)
	}
	expectQuiet(t, tap, 50*time.Millisecond)
	fk.SimKeyup()
}

func TestRapidTapsDebounced(t *testing.T) {
	fk := NewFake()
	tap := NewTap(fk, 200*time.Millisecond)

	fk.SimKeydown()
	waitActivation(t, tap)
	fk.SimKeyup()

	// Second tap inside the debounce window is swallowed.
	time.Sleep(20 * time.Millisecond)
	fk.SimKeydown()
	fk.SimKeyup()
	expectQuiet(t, tap, 50*time.Millisecond)
}

func TestSeparatedTapsEachActivate(t *testing.T) {
	fk := NewFake()
	tap := NewTap(fk, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		fk.SimKeydown()
		waitActivation(t, tap)
		fk.SimKeyup()
		time.Sleep(30 * time.Millisecond)
	}
}

func TestParseCombo(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ctrl+shift+space", "ctrl+shift+space", false},
		{"Ctrl + Shift + Space", "ctrl+shift+space", false},
		{"alt+space", "alt+space", false},
		{"cmd+k", "super+k", false},
		{"ctrl+9", "ctrl+9", false},
		{"space", "", true},         // no modifier
		{"ctrl+shift", "", true},    // no terminal key
		{"ctrl+escape", "", true},   // unsupported key
		{"hyper+space", "", true},   // unknown modifier
	}
	for _, tt := range tests {
		c, err := ParseCombo(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCombo(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCombo(%q): %v", tt.in, err)
			continue
		}
		if c.String() != tt.want {
			t.Errorf("ParseCombo(%q) = %q, want %q", tt.in, c.String(), tt.want)
		}
	}
}
