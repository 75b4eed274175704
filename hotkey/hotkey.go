// Package hotkey delivers global hotkey presses. The combination is
// configurable; the default is ctrl+shift+space.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Combo is a parsed hotkey combination: modifier flags plus one
// terminal key ('a'..'z', '0'..'9' or ' ' for space).
type Combo struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   rune
}

func ParseCombo(s string) (Combo, error) {
	var c Combo
	haveKey := false
	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "super", "cmd", "win", "meta":
			c.Super = true
		case "space":
			c.Key = ' '
			haveKey = true
		default:
			if len(part) == 1 {
				r := rune(part[0])
				if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
					c.Key = r
					haveKey = true
					continue
				}
			}
			return Combo{}, fmt.Errorf("unknown hotkey part %q in %q", part, s)
		}
	}
	if !haveKey {
		return Combo{}, fmt.Errorf("hotkey %q has no terminal key", s)
	}
	if !c.Ctrl && !c.Shift && !c.Alt && !c.Super {
		return Combo{}, fmt.Errorf("hotkey %q needs at least one modifier", s)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	if c.Key == ' ' {
		parts = append(parts, "space")
	} else {
		parts = append(parts, string(c.Key))
	}
	return strings.Join(parts, "+")
}
