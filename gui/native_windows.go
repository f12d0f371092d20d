//go:build gui

package gui

import (
	"unsafe"

	"fyne.io/fyne/v2/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func contextHandle(ctx any) (uintptr, bool) {
	switch c := ctx.(type) {
	case driver.WindowsWindowContext:
		return c.HWND, true
	case *driver.WindowsWindowContext:
		return c.HWND, true
	}
	return 0, false
}

func nativeHandle(w *glfw.Window) uintptr { return uintptr(unsafe.Pointer(w.GetWin32Window())) }
