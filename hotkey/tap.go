package hotkey

import "time"

// Tap turns raw keydown/keyup pairs into single activation events.
// A press fires immediately; further keydowns are ignored until the
// key is released and the debounce window has passed, so holding the
// combination (or keyboard autorepeat) never double-activates.
type Tap struct {
	activations chan struct{}
}

func NewTap(hk Hotkey, debounce time.Duration) *Tap {
	t := &Tap{activations: make(chan struct{}, 1)}
	go t.run(hk, debounce)
	return t
}

// Activations returns a channel that fires once per distinct press.
func (t *Tap) Activations() <-chan struct{} { return t.activations }

func (t *Tap) run(hk Hotkey, debounce time.Duration) {
	var lastFire time.Time
	for {
		<-hk.Keydown()
		if time.Since(lastFire) >= debounce {
			lastFire = time.Now()
			select {
			case t.activations <- struct{}{}:
			default:
			}
		}
		// Swallow everything until release so a held key is one press.
	drain:
		for {
			select {
			case <-hk.Keydown():
			case <-hk.Keyup():
				break drain
			}
		}
	}
}
