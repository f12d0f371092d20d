//go:build !linux && !darwin && !windows

package hotkey

import "golang.design/x/hotkey"

// X11 modifier masks: Mod1 is Alt, Mod4 is Super on common layouts.
const (
	modAlt   = hotkey.Mod1
	modSuper = hotkey.Mod4
)
