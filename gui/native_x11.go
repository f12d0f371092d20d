//go:build gui && (linux || freebsd || netbsd || openbsd) && !wayland

package gui

import (
	"fyne.io/fyne/v2/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func contextHandle(ctx any) (uintptr, bool) {
	switch c := ctx.(type) {
	case driver.X11WindowContext:
		return c.WindowHandle, true
	case *driver.X11WindowContext:
		return c.WindowHandle, true
	}
	return 0, false
}

func nativeHandle(w *glfw.Window) uintptr { return uintptr(w.GetX11Window()) }
