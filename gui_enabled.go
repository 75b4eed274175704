//go:build gui

package main

import (
	"runtime"

	"sova/assistant"
	"sova/gui"
)

var guiMode bool
var guiApp *gui.App

// guiSurface is consumed by run() when assembling the orchestrator.
var guiSurface assistant.Surface

func initGUI() {
	guiMode = true

	// Fyne/GLFW needs the main thread.
	runtime.LockOSThread()

	guiApp = gui.NewApp(run, cancelActive)
	guiSurface = guiApp
	if err := gui.Run(guiApp); err != nil {
		panic(err)
	}
}
