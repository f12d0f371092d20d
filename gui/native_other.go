//go:build gui && !darwin && !windows && (wayland || !(linux || freebsd || netbsd || openbsd))

package gui

import "github.com/go-gl/glfw/v3.3/glfw"

// Wayland gives clients no window positions or stacking control.
func contextHandle(any) (uintptr, bool) { return 0, false }

func nativeHandle(*glfw.Window) uintptr { return 0 }
