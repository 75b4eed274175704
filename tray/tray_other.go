//go:build !darwin

package tray

func Init() <-chan struct{}  { return quitCh }
func updateBusyIcon(bool)    {}
func updateErrorIcon(bool)   {}
func updateTooltip(string)   {}
