//go:build gui

package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"

	"sova/assistant"
)

const hudWidth = 480

// App is the overlay HUD: a frameless window at the top of the screen
// showing what sova heard and what it answered. It stays hidden until
// a session starts and implements assistant.Surface.
type App struct {
	fyneApp fyne.App
	window  fyne.Window
	pulse   *PulseWidget
	status  *widget.Label
	reply   *widget.Label

	onReady  func()
	onCancel func()
	posX     int
	posY     int
}

func NewApp(onReady, onCancel func()) *App {
	return &App{onReady: onReady, onCancel: onCancel}
}

func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.sova.hud")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	if desk, ok := a.fyneApp.(desktop.App); ok {
		icon := fyne.NewStaticResource("sova.png", appIcon())
		menu := fyne.NewMenu("sova",
			fyne.NewMenuItem("Quit", func() {
				a.fyneApp.Quit()
			}),
		)
		desk.SetSystemTrayMenu(menu)
		desk.SetSystemTrayIcon(icon)
	}

	var screenW int
	monitor := glfw.GetPrimaryMonitor()
	if monitor != nil {
		_, _, screenW, _ = monitor.GetWorkarea()
	} else {
		screenW = 1920
	}

	if drv, ok := a.fyneApp.Driver().(desktop.Driver); ok {
		a.window = drv.CreateSplashWindow()
	} else {
		a.window = a.fyneApp.NewWindow("sova")
	}

	a.pulse = NewPulseWidget()
	a.status = widget.NewLabel("")
	a.status.TextStyle = fyne.TextStyle{Bold: true}
	a.reply = widget.NewLabel("")
	a.reply.Wrapping = fyne.TextWrapWord

	header := container.NewBorder(nil, nil, a.pulse, nil, a.status)
	content := container.NewVBox(header, a.reply)

	a.window.SetContent(content)
	a.window.Resize(fyne.NewSize(hudWidth, content.MinSize().Height))
	a.window.SetPadded(true)

	a.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape && a.onCancel != nil {
			a.onCancel()
		}
	})

	a.posX = (screenW - hudWidth) / 2
	a.posY = 80

	go a.onReady()

	// The window stays hidden until the first session starts.
	a.fyneApp.Run()
	return nil
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}

func (a *App) show() {
	fyne.Do(func() {
		if a.window == nil {
			return
		}
		if glfwWin := glfw.GetCurrentContext(); glfwWin != nil {
			glfwWin.SetPos(a.posX, a.posY)
			glfwWin.SetAttrib(glfw.FocusOnShow, glfw.False)
			glfwWin.SetAttrib(glfw.Floating, glfw.True)
			glfwWin.Show()
		} else {
			a.window.Show()
		}
	})
}

// Update renders a session view. Part of assistant.Surface.
func (a *App) Update(v assistant.View) {
	fyne.Do(func() {
		a.status.SetText(v.Status)
		a.reply.SetText(v.Text)
		a.pulse.SetState(pulseStateFor(v.State))
	})
	a.show()
}

// Hide dismisses the overlay. Part of assistant.Surface.
func (a *App) Hide() {
	fyne.Do(func() {
		if a.window != nil {
			a.window.Hide()
		}
		a.pulse.SetState(pulseOff)
	})
}

func pulseStateFor(s assistant.State) pulseState {
	switch s {
	case assistant.StateCapturing:
		return pulseListening
	case assistant.StateThinking:
		return pulseThinking
	case assistant.StateSpeaking:
		return pulseSpeaking
	case assistant.StateCaptureFailed, assistant.StateInferenceFailed, assistant.StatePlaybackFailed:
		return pulseError
	default:
		return pulseOff
	}
}
