// Package tray puts sova in the menu bar: ask, copy the last reply,
// toggle start-at-login, quit.
package tray

import (
	"sync"
	"time"
)

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once

	askFn      func()
	copyLastFn func()

	loginOn bool
	loginCb func(bool) error

	hotkeyLabel string
)

func OnAsk(fn func())            { askFn = fn }
func OnCopyLast(fn func())       { copyLastFn = fn }
func SetLogin(on bool)           { loginOn = on }
func OnLogin(fn func(bool) error) { loginCb = fn }

// SetHotkeyLabel sets the combination shown next to the Ask item.
// Call before Init.
func SetHotkeyLabel(label string) { hotkeyLabel = label }

// SetBusy switches the icon between idle and in-flight.
func SetBusy(on bool) {
	updateBusyIcon(on)
}

func SetError(msg string) {
	updateErrorIcon(true)
	updateTooltip("sova – " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		updateErrorIcon(false)
		updateTooltip("sova – ask by voice")
	}()
}

func Quit() {
	closeOnce.Do(func() { close(quitCh) })
}
