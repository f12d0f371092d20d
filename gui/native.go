//go:build gui

package gui

import (
	"slices"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// nativeWindow finds the GLFW window behind a fyne window. Fyne does not
// expose it, so the windows current while the note paints are collected and
// the one whose native handle matches the driver's is used.
type nativeWindow struct {
	w fyne.Window

	mu       sync.Mutex
	seen     []*glfw.Window
	tied     *glfw.Window
	floating *bool // waiting for the GLFW window to be found
}

func newNativeWindow(w fyne.Window) *nativeWindow {
	return &nativeWindow{w: w}
}

// observe is called while the note paints.
func (n *nativeWindow) observe() {
	cur := glfw.GetCurrentContext()
	if cur == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tied != nil || slices.Contains(n.seen, cur) {
		return
	}
	n.seen = append(n.seen, cur)
	if n.floating != nil {
		go fyne.Do(n.flush)
	}
}

func (n *nativeWindow) flush() {
	n.mu.Lock()
	on := n.floating
	n.mu.Unlock()
	if on != nil {
		n.setFloating(*on)
	}
}

// run calls fn with the GLFW window of n.w on the main thread. It reports
// false when that window is not known yet.
func (n *nativeWindow) run(fn func(*glfw.Window)) bool {
	nw, ok := n.w.(driver.NativeWindow)
	if !ok {
		return false
	}
	found := false
	nw.RunNative(func(ctx any) {
		win := n.lookup(ctx)
		if win != nil {
			found = true
			fn(win)
		}
	})
	return found
}

func (n *nativeWindow) lookup(ctx any) *glfw.Window {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tied != nil {
		return n.tied
	}
	handle, ok := contextHandle(ctx)
	if !ok {
		return nil
	}
	win, ok := tieWindow(n.seen, handle, nativeHandle)
	if !ok {
		return nil
	}
	n.tied, n.seen = win, nil
	return win
}

// setFloating keeps the window above others. Until the GLFW window is
// known the request is remembered and applied once the note has painted.
func (n *nativeWindow) setFloating(on bool) {
	attr := glfw.False
	if on {
		attr = glfw.True
	}
	applied := n.run(func(win *glfw.Window) { win.SetAttrib(glfw.Floating, attr) })
	n.mu.Lock()
	if applied {
		n.floating = nil
	} else {
		n.floating = &on
	}
	n.mu.Unlock()
}

// moveBy shifts the window by dx, dy screen pixels.
func (n *nativeWindow) moveBy(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	n.run(func(win *glfw.Window) {
		x, y := win.GetPos()
		win.SetPos(x+dx, y+dy)
	})
}

// tieWindow picks the candidate whose native handle is handle.
func tieWindow[T comparable](seen []T, handle uintptr, native func(T) uintptr) (T, bool) {
	var zero T
	if handle == 0 {
		return zero, false
	}
	for _, w := range seen {
		if native(w) == handle {
			return w, true
		}
	}
	return zero, false
}
