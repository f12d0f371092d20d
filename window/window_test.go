package window

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"stickies/audio"
	"stickies/dictation"
	"stickies/note"
	"stickies/transcriber"
)

type fakeView struct {
	title    string
	text     strings.Builder
	label    string
	status   string
	pinned   bool
	notified []string
	appends  int
}

func (v *fakeView) SetTitle(title string) { v.title = title }
func (v *fakeView) SetText(text string) {
	v.text.Reset()
	v.text.WriteString(text)
}
func (v *fakeView) AppendText(text string) {
	v.text.WriteString(text)
	v.appends++
}
func (v *fakeView) SetDictationLabel(label string) { v.label = label }
func (v *fakeView) SetStatus(status string) { v.status = status }
func (v *fakeView) SetPinned(pinned bool) { v.pinned = pinned }
func (v *fakeView) Notify(title, _ string) { v.notified = append(v.notified, title) }

// queuePoster stands in for the toolkit event loop: posts queue up until
// the test drains them on its own goroutine.
type queuePoster struct {
	mu    sync.Mutex
	queue []func()
}

func (p *queuePoster) Post(fn func()) {
	p.mu.Lock()
	p.queue = append(p.queue, fn)
	p.mu.Unlock()
}

func (p *queuePoster) drain() int {
	p.mu.Lock()
	q := p.queue
	p.queue = nil
	p.mu.Unlock()
	for _, fn := range q {
		fn()
	}
	return len(q)
}

func (p *queuePoster) drainUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out draining posted updates")
		}
		if p.drain() == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

type fakeController struct {
	state   dictation.State
	device  *audio.DeviceInfo
	started []*audio.DeviceInfo
	handler dictation.Handler
	onState func(dictation.State)
}

func (c *fakeController) Start(d *audio.DeviceInfo) {
	c.started = append(c.started, d)
	c.device = d
	c.set(dictation.Listening)
}

func (c *fakeController) Stop() {
	if c.state == dictation.Listening {
		c.set(dictation.Stopping)
	}
}

func (c *fakeController) set(s dictation.State) {
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *fakeController) SelectDevice(d *audio.DeviceInfo) { c.device = d }
func (c *fakeController) State() dictation.State { return c.state }
func (c *fakeController) Device() *audio.DeviceInfo { return c.device }
func (c *fakeController) SetHandler(h dictation.Handler) { c.handler = h }
func (c *fakeController) SetStateHandler(fn func(dictation.State)) { c.onState = fn }

type fakeCues struct{ start, stop, errs int }

func (c *fakeCues) Start() { c.start++ }
func (c *fakeCues) Stop() { c.stop++ }
func (c *fakeCues) Error() { c.errs++ }

func tone(d time.Duration) []byte {
	n := int(d.Seconds() * 16000)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(10000 * math.Sin(2*math.Pi*300*float64(i)/16000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

type rig struct {
	fake   *audio.FakeContext
	rec    *transcriber.FakeRecognizer
	ctrl   *dictation.Controller
	view   *fakeView
	poster *queuePoster
	win    *Window
	path   string
}

func newRig(t *testing.T, script ...transcriber.FakeResult) *rig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	fake := audio.NewFakeContext(tone(300*time.Millisecond), false)
	fake.SetDevices(
		audio.DeviceInfo{ID: "alsa_input.0", Name: "Built-in Mic"},
		audio.DeviceInfo{ID: "bluez_input.1", Name: "Headset Mic"},
	)
	mic := audio.NewMicrophone(fake,
		audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		audio.EndpointConfig{Silence: 100 * time.Millisecond})
	rec := transcriber.NewFake(script...)
	ctrl := dictation.New(ctx, mic, rec, dictation.Options{RetryDelay: time.Millisecond})
	t.Cleanup(func() {
		ctrl.Stop()
		cancel()
		ctrl.Wait()
	})

	path := filepath.Join(t.TempDir(), "groceries.txt")
	doc, err := note.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	r := &rig{fake: fake, rec: rec, ctrl: ctrl, view: &fakeView{}, poster: &queuePoster{}, path: path}
	r.win = New(doc, ctrl, audio.NewRegistry(fake), r.view, r.poster, Options{})
	return r
}

func TestHeadsetMicScenario(t *testing.T) {
	r := newRig(t, transcriber.FakeResult{Text: "hello world"})
	doc := r.win.Document()

	r.win.SelectDevice("Headset Mic")
	r.win.ToggleDictation()
	if got := r.ctrl.Device(); got == nil || got.Name != "Headset Mic" {
		t.Fatalf("controller device = %s", got.Label())
	}

	r.poster.drainUntil(t, func() bool { return doc.Text() == "hello world " })
	r.win.ToggleDictation()
	r.ctrl.Wait()
	r.poster.drain()

	r.win.Edited(doc.Text() + " typed")
	if err := r.win.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "hello world  typed" {
		t.Errorf("file = %q, want %q", got, "hello world  typed")
	}
	if r.view.label != LabelStart {
		t.Errorf("label = %q after stop, want %q", r.view.label, LabelStart)
	}
	if r.fake.Active() != 0 {
		t.Errorf("%d captures left open", r.fake.Active())
	}
}

func TestResultsAppendInOrder(t *testing.T) {
	r := newRig(t,
		transcriber.FakeResult{Text: "eggs"},
		transcriber.FakeResult{Text: "milk"},
		transcriber.FakeResult{Text: "bread"},
	)
	doc := r.win.Document()
	r.win.ToggleDictation()
	r.poster.drainUntil(t, func() bool { return r.rec.Calls() >= 3 && len(doc.Text()) >= len("eggs milk bread ") })
	r.win.ToggleDictation()
	r.ctrl.Wait()
	r.poster.drain()

	if got := doc.Text(); got != "eggs milk bread " {
		t.Errorf("buffer = %q", got)
	}
	if got := r.view.text.String(); got != "eggs milk bread " {
		t.Errorf("view = %q", got)
	}
}

func TestStaleDeviceFallsBackToDefault(t *testing.T) {
	r := newRig(t)
	r.win.SelectDevice("USB Mic")
	r.win.ToggleDictation()
	if r.ctrl.Device() != nil {
		t.Errorf("device = %s, want system default", r.ctrl.Device().Label())
	}
	if !strings.Contains(r.view.status, "using system default") {
		t.Errorf("status = %q", r.view.status)
	}
}

func TestSwitchDeviceWhileListening(t *testing.T) {
	r := newRig(t)
	r.win.ToggleDictation()
	r.win.SelectDevice("Built-in Mic")
	if d := r.ctrl.Device(); d == nil || d.Name != "Built-in Mic" || d.Index != 0 {
		t.Errorf("device = %+v", d)
	}
}

func TestDeviceNames(t *testing.T) {
	r := newRig(t)
	r.fake.SetDevices(
		audio.DeviceInfo{Name: "Built-in Mic"},
		audio.DeviceInfo{Name: "  "},
		audio.DeviceInfo{Name: "Headset Mic"},
	)
	names, err := r.win.DeviceNames()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "Built-in Mic,Headset Mic" {
		t.Errorf("names = %v", names)
	}
}

func newFakeWindow(t *testing.T) (*Window, *fakeController, *fakeView, *queuePoster, *fakeCues) {
	t.Helper()
	doc := note.New(filepath.Join(t.TempDir(), "todo.txt"))
	ctrl := &fakeController{}
	view := &fakeView{}
	poster := &queuePoster{}
	cues := &fakeCues{}
	w := New(doc, ctrl, audio.NewRegistry(audio.NewFakeContext(nil, false)), view, poster, Options{Cues: cues})
	return w, ctrl, view, poster, cues
}

func TestLabelsFollowState(t *testing.T) {
	w, ctrl, view, poster, cues := newFakeWindow(t)
	if view.label != LabelStart || view.title != "todo" || !view.pinned {
		t.Fatalf("initial view = %+v", view)
	}

	w.ToggleDictation()
	if view.label != LabelStart {
		t.Error("label changed before the UI loop ran")
	}
	poster.drain()
	if view.label != LabelStop {
		t.Errorf("label = %q, want %q", view.label, LabelStop)
	}

	w.ToggleDictation()
	poster.drain()
	if view.label != LabelStopping {
		t.Errorf("label = %q, want %q", view.label, LabelStopping)
	}

	ctrl.set(dictation.Idle)
	poster.drain()
	if view.label != LabelStart {
		t.Errorf("label = %q, want %q", view.label, LabelStart)
	}
	if cues.start != 1 || cues.stop != 1 {
		t.Errorf("cues = %+v", cues)
	}
}

func TestFailedResultLeavesDocument(t *testing.T) {
	for _, f := range []dictation.Failure{dictation.DeviceUnavailable, dictation.Unintelligible, dictation.ServiceUnavailable} {
		t.Run(f.String(), func(t *testing.T) {
			w, ctrl, view, poster, cues := newFakeWindow(t)
			w.Edited("typed")
			ctrl.handler(dictation.Result{Err: errors.New("x"), Failure: f})
			poster.drain()

			if w.Document().Text() != "typed" || view.appends != 0 {
				t.Errorf("document mutated: %q", w.Document().Text())
			}
			if view.status == "" {
				t.Error("no status for failure")
			}
			if wantErr := f == dictation.DeviceUnavailable; (cues.errs == 1) != wantErr {
				t.Errorf("error cues = %d", cues.errs)
			}
		})
	}
}

func TestAppendGoesToEndNotCursor(t *testing.T) {
	w, ctrl, view, poster, _ := newFakeWindow(t)
	w.Edited("first line\n")
	ctrl.handler(dictation.Result{Text: "dictated"})
	w.Edited(w.Document().Text() + "typed meanwhile ")
	poster.drain()

	if got := w.Document().Text(); got != "first line\ntyped meanwhile dictated " {
		t.Errorf("buffer = %q", got)
	}
	if view.appends != 1 {
		t.Errorf("appends = %d", view.appends)
	}
}

func TestResultsAfterCloseAreDropped(t *testing.T) {
	w, ctrl, view, poster, _ := newFakeWindow(t)
	closed := 0
	w.opts.OnClose = func() { closed++ }

	ctrl.Start(nil)
	ctrl.handler(dictation.Result{Text: "queued before close"})
	w.Close()
	ctrl.handler(dictation.Result{Text: "arrived after close"})
	poster.drain()

	if w.Document().Text() != "" || view.appends != 0 {
		t.Errorf("late result applied: %q", w.Document().Text())
	}
	if ctrl.state != dictation.Stopping {
		t.Errorf("Close did not stop dictation: %v", ctrl.state)
	}
	w.Close()
	if closed != 1 {
		t.Errorf("OnClose called %d times", closed)
	}
}

func TestCloseWithRecognitionInFlight(t *testing.T) {
	r := newRig(t, transcriber.FakeResult{Text: "too late"})
	r.rec.Hold()
	r.win.ToggleDictation()
	select {
	case <-r.rec.Entered():
	case <-time.After(5 * time.Second):
		t.Fatal("recognition never started")
	}
	r.win.Close()
	r.rec.Release()
	r.ctrl.Wait()
	r.poster.drain()

	if r.win.Document().Text() != "" {
		t.Errorf("buffer = %q after close", r.win.Document().Text())
	}
}

func TestSaveFailureNotifies(t *testing.T) {
	doc := note.New(filepath.Join(t.TempDir(), "missing-dir", "n.txt"))
	view := &fakeView{}
	w := New(doc, &fakeController{}, nil, view, &queuePoster{}, Options{})
	w.Edited("keep me")

	err := w.Save()
	if !errors.Is(err, note.ErrIO) {
		t.Fatalf("err = %v, want note.ErrIO", err)
	}
	if len(view.notified) != 1 {
		t.Errorf("notifications = %v", view.notified)
	}
	if doc.Text() != "keep me" {
		t.Errorf("buffer lost")
	}
}

func TestSaveAsRetitles(t *testing.T) {
	w, _, view, _, _ := newFakeWindow(t)
	w.Edited("x")
	if err := w.SaveAs(filepath.Join(t.TempDir(), "renamed.txt")); err != nil {
		t.Fatal(err)
	}
	if view.title != "renamed" {
		t.Errorf("title = %q", view.title)
	}
}

func TestTogglePin(t *testing.T) {
	w, _, view, _, _ := newFakeWindow(t)
	if w.TogglePin() || view.pinned {
		t.Error("first toggle should unpin")
	}
	if !w.TogglePin() || !view.pinned {
		t.Error("second toggle should pin")
	}
}

func TestCopy(t *testing.T) {
	w, _, view, _, _ := newFakeWindow(t)
	if err := w.Copy(); err == nil {
		t.Error("Copy without clipboard should fail")
	}
	var copied string
	w.opts.Clipboard = func(s string) error { copied = s; return nil }
	w.Edited("to clipboard")
	if err := w.Copy(); err != nil {
		t.Fatal(err)
	}
	if copied != "to clipboard" || view.status != "Copied" {
		t.Errorf("copied %q, status %q", copied, view.status)
	}
}

func TestOneWindowPerMicrophone(t *testing.T) {
	claims := NewClaims()
	registry := audio.NewRegistry(audio.NewFakeContext(nil, false))
	open := func(name string) (*Window, *fakeController, *fakeView, *queuePoster) {
		doc := note.New(filepath.Join(t.TempDir(), name+".txt"))
		ctrl := &fakeController{}
		view := &fakeView{}
		poster := &queuePoster{}
		return New(doc, ctrl, registry, view, poster, Options{Claims: claims}), ctrl, view, poster
	}
	a, ctrlA, _, postA := open("groceries")
	b, ctrlB, viewB, postB := open("todo")

	a.ToggleDictation()
	postA.drain()
	if claims.holder(nil) != a {
		t.Fatal("first window should hold the default microphone")
	}

	b.ToggleDictation()
	postB.drain()
	if ctrlB.state != dictation.Idle || len(ctrlB.started) != 0 {
		t.Fatalf("second window started on a busy microphone: state %v", ctrlB.state)
	}
	if want := "system default is in use by groceries"; viewB.status != want {
		t.Errorf("status = %q, want %q", viewB.status, want)
	}

	a.ToggleDictation()
	postA.drain()
	b.ToggleDictation()
	if ctrlB.state != dictation.Idle {
		t.Fatal("microphone freed before the first session went idle")
	}

	ctrlA.set(dictation.Idle)
	postA.drain()
	b.ToggleDictation()
	postB.drain()
	if ctrlB.state != dictation.Listening {
		t.Fatalf("state = %v, want listening once the microphone is free", ctrlB.state)
	}
	if claims.holder(nil) != b {
		t.Error("second window should now hold the microphone")
	}
}

func TestClaims(t *testing.T) {
	mic := &audio.DeviceInfo{ID: "alsa_input.0", Name: "Built-in Mic"}
	headset := &audio.DeviceInfo{ID: "bluez_input.1", Name: "Headset Mic"}
	a, b := &Window{}, &Window{}

	tests := []struct {
		name   string
		run    func(c *Claims) bool
		want   bool
		holder *Window
		dev    *audio.DeviceInfo
	}{
		{
			name:   "free device",
			run:    func(c *Claims) bool { _, ok := c.acquire(a, mic); return ok },
			want:   true,
			holder: a,
			dev:    mic,
		},
		{
			name: "busy device",
			run: func(c *Claims) bool {
				c.acquire(a, mic)
				_, ok := c.acquire(b, mic)
				return ok
			},
			want:   false,
			holder: a,
			dev:    mic,
		},
		{
			name: "same window again",
			run: func(c *Claims) bool {
				c.acquire(a, mic)
				_, ok := c.acquire(a, mic)
				return ok
			},
			want:   true,
			holder: a,
			dev:    mic,
		},
		{
			name: "switch frees the old device",
			run: func(c *Claims) bool {
				c.acquire(a, mic)
				c.acquire(a, headset)
				_, ok := c.acquire(b, mic)
				return ok
			},
			want:   true,
			holder: b,
			dev:    mic,
		},
		{
			name: "different devices",
			run: func(c *Claims) bool {
				c.acquire(a, mic)
				_, ok := c.acquire(b, headset)
				return ok
			},
			want:   true,
			holder: b,
			dev:    headset,
		},
		{
			name: "release",
			run: func(c *Claims) bool {
				c.acquire(a, mic)
				c.release(a)
				return true
			},
			want:   true,
			holder: nil,
			dev:    mic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClaims()
			if got := tt.run(c); got != tt.want {
				t.Errorf("acquire = %v, want %v", got, tt.want)
			}
			if got := c.holder(tt.dev); got != tt.holder {
				t.Errorf("holder = %p, want %p", got, tt.holder)
			}
		})
	}

	var none *Claims
	if _, ok := none.acquire(a, mic); !ok {
		t.Error("nil Claims should never refuse")
	}
}

func TestSelectBusyDeviceWhileListening(t *testing.T) {
	fake := audio.NewFakeContext(nil, false)
	fake.SetDevices(
		audio.DeviceInfo{ID: "alsa_input.0", Name: "Built-in Mic"},
		audio.DeviceInfo{ID: "bluez_input.1", Name: "Headset Mic"},
	)
	registry := audio.NewRegistry(fake)
	claims := NewClaims()
	open := func(name string) (*Window, *fakeController, *fakeView) {
		doc := note.New(filepath.Join(t.TempDir(), name+".txt"))
		ctrl := &fakeController{}
		view := &fakeView{}
		return New(doc, ctrl, registry, view, &queuePoster{}, Options{Claims: claims}), ctrl, view
	}
	a, _, _ := open("groceries")
	b, ctrlB, viewB := open("todo")

	a.SelectDevice("Headset Mic")
	a.ToggleDictation()
	b.SelectDevice("Built-in Mic")
	b.ToggleDictation()
	if ctrlB.state != dictation.Listening {
		t.Fatal("different microphones should both dictate")
	}

	b.SelectDevice("Headset Mic")
	if b.DeviceName() != "Built-in Mic" {
		t.Errorf("device = %q, want the previous input kept", b.DeviceName())
	}
	if ctrlB.device == nil || ctrlB.device.Name != "Built-in Mic" {
		t.Errorf("controller switched to %v", ctrlB.device)
	}
	if !strings.Contains(viewB.status, "in use by groceries") {
		t.Errorf("status = %q", viewB.status)
	}
}
