//go:build !darwin && !linux

package login

import "errors"

func Enabled() bool { return false }

func Enable() error {
	return errors.New("start at login not supported on this platform")
}

func Disable() error { return nil }
