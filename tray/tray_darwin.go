//go:build darwin

package tray

import (
	"fyne.io/systray"
	"golang.design/x/hotkey/mainthread"
)

var (
	mAsk   *systray.MenuItem
	mCopy  *systray.MenuItem
	mLogin *systray.MenuItem
	mQuit  *systray.MenuItem
)

func Init() <-chan struct{} {
	start, _ := systray.RunWithExternalLoop(onReady, onExit)
	done := make(chan struct{})
	mainthread.Call(func() {
		start()
		close(done)
	})
	<-done
	return quitCh
}

func onReady() {
	systray.SetTemplateIcon(iconIdleHi, iconIdle)
	systray.SetTooltip("sova – ask by voice")

	askTitle := "Ask"
	if hotkeyLabel != "" {
		askTitle = "Ask (" + hotkeyLabel + ")"
	}
	mAsk = systray.AddMenuItem(askTitle, "Start listening")
	mCopy = systray.AddMenuItem("Copy Last Reply", "Copy the last answer to the clipboard")
	systray.AddSeparator()
	mLogin = systray.AddMenuItemCheckbox("Start at Login", "Launch sova when you log in", loginOn)
	systray.AddSeparator()
	mQuit = systray.AddMenuItem("Quit sova", "Quit")

	go func() {
		for {
			select {
			case <-mAsk.ClickedCh:
				if askFn != nil {
					askFn()
				}
			case <-mCopy.ClickedCh:
				if copyLastFn != nil {
					copyLastFn()
				}
			case <-mLogin.ClickedCh:
				toggleLogin()
			case <-mQuit.ClickedCh:
				Quit()
				return
			}
		}
	}()
}

func toggleLogin() {
	if loginCb == nil {
		return
	}
	want := !loginOn
	if err := loginCb(want); err != nil {
		return
	}
	loginOn = want
	if loginOn {
		mLogin.Check()
	} else {
		mLogin.Uncheck()
	}
}

func onExit() {
	Quit()
}

func updateBusyIcon(on bool) {
	if on {
		systray.SetIcon(iconBusyHi)
	} else {
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
	}
}

func updateErrorIcon(on bool) {
	if on {
		systray.SetIcon(iconErrorHi)
	} else {
		systray.SetTemplateIcon(iconIdleHi, iconIdle)
	}
}

func updateTooltip(msg string) {
	systray.SetTooltip(msg)
}
