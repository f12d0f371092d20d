//go:build gui

package gui

import (
	"fyne.io/fyne/v2/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func contextHandle(ctx any) (uintptr, bool) {
	switch c := ctx.(type) {
	case driver.MacWindowContext:
		return c.NSWindow, true
	case *driver.MacWindowContext:
		return c.NSWindow, true
	}
	return 0, false
}

func nativeHandle(w *glfw.Window) uintptr { return uintptr(w.GetCocoaWindow()) }
