//go:build !gui

package main

import "sova/assistant"

// Stubs for non-GUI builds (guiMode stays false, so these are never used)
var guiMode bool
var guiSurface assistant.Surface

func initGUI() {
	panic("sova: built without GUI support (rebuild with -tags gui)")
}
