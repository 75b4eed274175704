//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	combo   Combo
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
}

func New(combo Combo) (Hotkey, error) {
	key, err := xKey(combo.Key)
	if err != nil {
		return nil, err
	}
	var mods []hotkey.Modifier
	if combo.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if combo.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	if combo.Alt {
		mods = append(mods, modAlt)
	}
	if combo.Super {
		mods = append(mods, modSuper)
	}
	return &xHotkey{
		combo:   combo,
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func xKey(r rune) (hotkey.Key, error) {
	switch {
	case r == ' ':
		return hotkey.KeySpace, nil
	case r >= 'a' && r <= 'z':
		return hotkey.KeyA + hotkey.Key(r-'a'), nil
	case r >= '0' && r <= '9':
		return hotkey.Key0 + hotkey.Key(r-'0'), nil
	}
	return 0, fmt.Errorf("key %q not registrable", r)
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			<-h.hk.Keydown()
			h.keydown <- struct{}{}
		}
	}()
	go func() {
		for {
			<-h.hk.Keyup()
			h.keyup <- struct{}{}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose(combo Combo) (string, error) {
	if _, err := xKey(combo.Key); err != nil {
		return "", err
	}
	return fmt.Sprintf("hotkey support available (%s)", combo), nil
}
