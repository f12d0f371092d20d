// Package window holds the toolkit-independent half of a note window: it
// owns the document, drives the dictation controller and applies results
// on the UI goroutine through a Poster.
package window

import (
	"errors"
	"fmt"
	"sync/atomic"

	"stickies/audio"
	"stickies/dictation"
	"stickies/log"
	"stickies/note"
)

const (
	LabelStart    = "Start dictation"
	LabelStop     = "Stop dictation"
	LabelStopping = "Stopping…"
)

// View is the widget side of a note window. All methods are called on the
// UI goroutine.
type View interface {
	SetTitle(title string)
	SetText(text string)
	// AppendText adds text at the end of the text area and scrolls to it.
	AppendText(text string)
	SetDictationLabel(label string)
	SetStatus(status string)
	SetPinned(pinned bool)
	Notify(title, message string)
}

// Poster runs fn on the UI goroutine, in the order posted.
type Poster interface {
	Post(fn func())
}

type PosterFunc func(fn func())

func (f PosterFunc) Post(fn func()) { f(fn) }

type Controller interface {
	Start(device *audio.DeviceInfo)
	Stop()
	SelectDevice(device *audio.DeviceInfo)
	State() dictation.State
	Device() *audio.DeviceInfo
	SetHandler(h dictation.Handler)
	SetStateHandler(fn func(dictation.State))
}

type Devices interface {
	ListDevices() ([]audio.DeviceInfo, error)
	ResolveByName(name string) (*audio.DeviceInfo, error)
}

type Cues interface {
	Start()
	Stop()
	Error()
}

type Options struct {
	Cues      Cues
	Clipboard func(text string) error
	OnClose   func()
	// Claims is shared by every window of the process; nil disables the
	// one-window-per-microphone check.
	Claims *Claims
}

type Window struct {
	doc     *note.Document
	ctrl    Controller
	devices Devices
	view    View
	poster  Poster
	opts    Options

	// UI goroutine only
	deviceName string
	pinned     bool

	closed atomic.Bool
}

// New binds a window to doc and registers its result handler with ctrl.
// Windows start pinned on top.
func New(doc *note.Document, ctrl Controller, devices Devices, view View, poster Poster, opts Options) *Window {
	w := &Window{
		doc:     doc,
		ctrl:    ctrl,
		devices: devices,
		view:    view,
		poster:  poster,
		opts:    opts,
		pinned:  true,
	}
	ctrl.SetHandler(w.onResult)
	ctrl.SetStateHandler(func(dictation.State) { poster.Post(w.stateChanged) })

	view.SetTitle(doc.Title())
	view.SetText(doc.Text())
	view.SetPinned(true)
	w.refreshLabel()
	return w
}

func (w *Window) Document() *note.Document { return w.doc }

func (w *Window) Title() string { return w.doc.Title() }

func (w *Window) Pinned() bool { return w.pinned }

func (w *Window) DeviceName() string { return w.deviceName }

// Listening reports whether a dictation session is capturing.
func (w *Window) Listening() bool { return w.ctrl.State() == dictation.Listening }

// Edited mirrors the text area into the document after a user edit.
func (w *Window) Edited(text string) {
	if w.closed.Load() {
		return
	}
	w.doc.Replace(text)
}

func (w *Window) Save() error {
	if err := w.doc.Save(); err != nil {
		log.Errorf("save %s: %v", w.doc.Path(), err)
		w.view.Notify("Could not save note", err.Error())
		w.view.SetStatus("Save failed")
		return err
	}
	log.NoteSaved(w.doc.Path(), len(w.doc.Text()))
	w.view.SetStatus("Saved")
	return nil
}

func (w *Window) SaveAs(path string) error {
	if err := w.doc.SaveAs(path); err != nil {
		log.Errorf("save as %s: %v", path, err)
		w.view.Notify("Could not save note", err.Error())
		w.view.SetStatus("Save failed")
		return err
	}
	log.NoteSaved(path, len(w.doc.Text()))
	w.view.SetTitle(w.doc.Title())
	w.view.SetStatus("Saved")
	return nil
}

func (w *Window) TogglePin() bool {
	w.pinned = !w.pinned
	w.view.SetPinned(w.pinned)
	return w.pinned
}

func (w *Window) ToggleDictation() {
	if w.closed.Load() {
		return
	}
	if w.Listening() {
		w.ctrl.Stop()
		if w.opts.Cues != nil {
			w.opts.Cues.Stop()
		}
		return
	}
	dev := w.resolveDevice()
	if !w.claim(dev) {
		return
	}
	w.ctrl.Start(dev)
	if w.opts.Cues != nil {
		w.opts.Cues.Start()
	}
}

func (w *Window) claim(dev *audio.DeviceInfo) bool {
	owner, ok := w.opts.Claims.acquire(w, dev)
	if !ok {
		log.Warnf("%s: %s is in use by %s", w.Title(), dev.Label(), owner.Title())
		w.view.SetStatus(fmt.Sprintf("%s is in use by %s", dev.Label(), owner.Title()))
	}
	return ok
}

// DeviceNames re-enumerates input devices for the picker.
func (w *Window) DeviceNames() ([]string, error) {
	devices, err := w.devices.ListDevices()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names, nil
}

// SelectDevice picks the input by display name; "" is the system default.
// A running session switches on its next capture cycle, unless another
// window is dictating from that input.
func (w *Window) SelectDevice(name string) {
	prev := w.deviceName
	w.deviceName = name
	if w.ctrl.State() == dictation.Idle {
		return
	}
	dev := w.resolveDevice()
	if !w.claim(dev) {
		w.deviceName = prev
		return
	}
	w.ctrl.SelectDevice(dev)
}

func (w *Window) resolveDevice() *audio.DeviceInfo {
	if w.deviceName == "" {
		return nil
	}
	dev, err := w.devices.ResolveByName(w.deviceName)
	if err != nil {
		log.Warnf("input %q: %v, using system default", w.deviceName, err)
		if errors.Is(err, audio.ErrNoSuchDevice) {
			w.view.SetStatus(fmt.Sprintf("%s not found, using system default", w.deviceName))
		}
		return nil
	}
	return dev
}

func (w *Window) Copy() error {
	if w.opts.Clipboard == nil {
		return errors.New("clipboard not available")
	}
	if err := w.opts.Clipboard(w.doc.Text()); err != nil {
		w.view.Notify("Copy failed", err.Error())
		return err
	}
	w.view.SetStatus("Copied")
	return nil
}

// ExternalChange warns that another program rewrote the note file. The
// buffer is kept; the next Save overwrites the file.
func (w *Window) ExternalChange() {
	if w.closed.Load() {
		return
	}
	w.view.Notify("Note changed on disk", w.doc.Path()+" was modified by another program. Saving will overwrite it.")
}

// Close stops dictation. Results still in flight are dropped.
func (w *Window) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.ctrl.Stop()
	if w.opts.OnClose != nil {
		w.opts.OnClose()
	}
}

func (w *Window) onResult(res dictation.Result) {
	w.poster.Post(func() { w.apply(res) })
}

func (w *Window) apply(res dictation.Result) {
	if w.closed.Load() {
		return
	}
	if res.OK() {
		segment := res.Text + " "
		w.doc.Append(segment)
		w.view.AppendText(segment)
		w.view.SetStatus("")
		log.DictationText(w.doc.Title(), res.Text)
		return
	}
	w.view.SetStatus(failureStatus(res.Failure))
	if res.Failure == dictation.DeviceUnavailable && w.opts.Cues != nil {
		w.opts.Cues.Error()
	}
}

// stateChanged runs on the UI goroutine, so a Start made after the
// controller went idle is seen here and keeps its claim.
func (w *Window) stateChanged() {
	if w.ctrl.State() == dictation.Idle {
		w.opts.Claims.release(w)
	}
	w.refreshLabel()
}

func (w *Window) refreshLabel() {
	if w.closed.Load() {
		return
	}
	w.view.SetDictationLabel(Label(w.ctrl.State()))
}

func Label(s dictation.State) string {
	switch s {
	case dictation.Listening:
		return LabelStop
	case dictation.Stopping:
		return LabelStopping
	}
	return LabelStart
}

func failureStatus(f dictation.Failure) string {
	switch f {
	case dictation.DeviceUnavailable:
		return "Microphone unavailable"
	case dictation.Unintelligible:
		return "Didn't catch that"
	case dictation.ServiceUnavailable:
		return "Recognition service unavailable"
	}
	return ""
}
