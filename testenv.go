package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"stickies/hotkey"
	"stickies/log"
	"stickies/window"
)

const testWaitLimit = 30 * time.Second

// printView reports every view update on stdout, one line each, so
// integration tests can follow the window without a display.
type printView struct {
	out io.Writer

	mu      sync.Mutex
	text    strings.Builder
	appends int
	changed chan struct{}
}

func newPrintView(out io.Writer) *printView {
	return &printView{out: out, changed: make(chan struct{}, 1)}
}

func (v *printView) SetTitle(title string) { fmt.Fprintf(v.out, "title: %s\n", title) }

func (v *printView) SetText(text string) {
	v.mu.Lock()
	v.text.Reset()
	v.text.WriteString(text)
	v.mu.Unlock()
}

func (v *printView) AppendText(text string) {
	v.mu.Lock()
	v.text.WriteString(text)
	v.appends++
	v.mu.Unlock()
	fmt.Fprintf(v.out, "append: %s\n", strings.TrimSpace(text))
	select {
	case v.changed <- struct{}{}:
	default:
	}
}

func (v *printView) SetDictationLabel(label string) { fmt.Fprintf(v.out, "label: %s\n", label) }

func (v *printView) SetStatus(status string) {
	if status != "" {
		fmt.Fprintf(v.out, "status: %s\n", status)
	}
}

func (v *printView) SetPinned(pinned bool) { fmt.Fprintf(v.out, "pinned: %v\n", pinned) }

func (v *printView) Notify(title, message string) {
	fmt.Fprintf(v.out, "notify: %s: %s\n", title, message)
}

func (v *printView) segments() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.appends
}

func (v *printView) waitSegments(ctx context.Context, n int) bool {
	deadline := time.NewTimer(testWaitLimit)
	defer deadline.Stop()
	for v.segments() < n {
		select {
		case <-v.changed:
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// call runs fn through p and waits for it.
func call(ctx context.Context, p window.Poster, fn func()) {
	done := make(chan struct{})
	p.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// runTestMode opens the note with the WAV-backed audio context and reads
// commands from stdin:
//
//	KEYDOWN, KEYUP   simulate the dictation hotkey
//	TOGGLE           press the dictation button
//	WAIT [n]         block until n segments (default 1) were appended
//	DEVICE [name]    pick an input; no name selects the system default
//	SAVE, COPY, PIN  window actions
//	SLEEP ms
//	QUIT
func runTestMode(ctx context.Context, a *app, title string) int {
	doc, err := a.open(title)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := newPrintView(os.Stdout)
	// the queue goroutine stands in for a toolkit event loop
	poster := window.NewQueue(ctx, func(fn func()) { fn() })
	var win *window.Window
	var cleanup func()
	call(ctx, poster, func() { win, cleanup = a.bind(ctx, doc, view, poster) })
	if cleanup == nil {
		return 1
	}

	hk := hotkey.NewFake()
	go hotkey.Watch(ctx, hk, hotkey.DefaultHold, hotkey.Bindings{
		Start: func() { poster.Post(func() { startDictation(win) }) },
		Stop:  func() { poster.Post(func() { stopDictation(win) }) },
	})

	code := 0
	scanner := bufio.NewScanner(os.Stdin)
loop:
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		arg := strings.Join(fields[1:], " ")
		switch strings.ToUpper(fields[0]) {
		case "KEYDOWN":
			hk.SimKeydown()
		case "KEYUP":
			hk.SimKeyup()
		case "TOGGLE":
			poster.Post(win.ToggleDictation)
		case "WAIT":
			n := 1
			if arg != "" {
				if v, err := strconv.Atoi(arg); err == nil {
					n = v
				}
			}
			if !view.waitSegments(ctx, n) {
				fmt.Println("timeout: waiting for", n, "segment(s)")
				code = 1
				break loop
			}
		case "DEVICE":
			call(ctx, poster, func() { win.SelectDevice(arg) })
		case "SAVE":
			var err error
			call(ctx, poster, func() { err = win.Save() })
			if err != nil {
				code = 1
			}
		case "COPY":
			call(ctx, poster, func() { win.Copy() })
		case "PIN":
			call(ctx, poster, func() { win.TogglePin() })
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "QUIT":
			break loop
		default:
			log.Warnf("test mode: unknown command %q", fields[0])
		}
	}

	cleanup()
	fmt.Printf("text: %s\n", doc.Text())
	return code
}

func startDictation(win *window.Window) {
	if !win.Listening() {
		win.ToggleDictation()
	}
}

func stopDictation(win *window.Window) {
	if win.Listening() {
		win.ToggleDictation()
	}
}
