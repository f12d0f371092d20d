// Package hotkey delivers a global shortcut that starts and stops
// dictation in the focused note. The combo comes from the config
// (hotkey_combo), Ctrl+Shift+D by default.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
