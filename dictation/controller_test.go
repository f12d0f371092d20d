package dictation

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stickies/audio"
	"stickies/transcriber"
)

type stubMic struct {
	mu      sync.Mutex
	openErr map[string]error
	opens   []string
	active  atomic.Int32
}

func newStubMic() *stubMic { return &stubMic{openErr: map[string]error{}} }

func (m *stubMic) fail(name string, err error) {
	m.mu.Lock()
	m.openErr[name] = err
	m.mu.Unlock()
}

func (m *stubMic) Open(_ context.Context, device *audio.DeviceInfo) (audio.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, device.Label())
	if err := m.openErr[device.Label()]; err != nil {
		return nil, err
	}
	m.active.Add(1)
	return &stubSource{mic: m}, nil
}

type stubSource struct {
	mic  *stubMic
	once sync.Once
}

func (s *stubSource) Capture(ctx context.Context) (audio.Sample, error) {
	select {
	case <-ctx.Done():
		return audio.Sample{}, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	return audio.Sample{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}, nil
}

func (s *stubSource) Close() {
	s.once.Do(func() { s.mic.active.Add(-1) })
}

type sessionObserver struct {
	mu       sync.Mutex
	live     int
	maxLive  int
	started  int
	ended    int
	failures int
}

func (o *sessionObserver) SessionStarted(string, *audio.DeviceInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
	o.live++
	o.maxLive = max(o.maxLive, o.live)
}

func (o *sessionObserver) SessionEnded(string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended++
	o.live--
}

func (o *sessionObserver) Recognized(Result) {}

func (o *sessionObserver) Failed(Result) {
	o.mu.Lock()
	o.failures++
	o.mu.Unlock()
}

func newController(t *testing.T, mic audio.Microphone, rec transcriber.Recognizer, opts Options) *Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 5 * time.Millisecond
	}
	c := New(ctx, mic, rec, opts)
	t.Cleanup(func() {
		c.Stop()
		cancel()
		c.Wait()
	})
	return c
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestStartStopSettle(t *testing.T) {
	for _, ops := range []string{"s", "x", "ss", "sx", "xs", "xx", "sxs", "sxx", "ssx", "sxsx", "sxsxs", "ssxxs", "xsxss"} {
		t.Run(ops, func(t *testing.T) {
			obs := &sessionObserver{}
			c := newController(t, newStubMic(), transcriber.NewFake(), Options{Observer: obs})

			for _, op := range ops {
				if op == 's' {
					c.Start(nil)
				} else {
					c.Stop()
				}
			}

			wantListening := ops[len(ops)-1] == 's'
			if wantListening {
				if got := c.State(); got != Listening {
					t.Fatalf("State() = %v, want listening", got)
				}
				time.Sleep(10 * time.Millisecond)
				if got := c.State(); got != Listening {
					t.Fatalf("State() = %v after settling, want listening", got)
				}
			} else {
				c.Wait()
				if got := c.State(); got != Idle {
					t.Fatalf("State() = %v after settling, want idle", got)
				}
			}

			c.Stop()
			c.Wait()
			obs.mu.Lock()
			defer obs.mu.Unlock()
			if obs.maxLive > 1 {
				t.Errorf("%d loops ran at once", obs.maxLive)
			}
			if obs.started != obs.ended {
				t.Errorf("started %d sessions, ended %d", obs.started, obs.ended)
			}
		})
	}
}

func TestStartIsIdempotent(t *testing.T) {
	obs := &sessionObserver{}
	c := newController(t, newStubMic(), transcriber.NewFake(), Options{Observer: obs})

	headset := &audio.DeviceInfo{Name: "Headset Mic"}
	c.Start(headset)
	c.Start(&audio.DeviceInfo{Name: "Webcam"})
	if c.Device() != headset {
		t.Errorf("second Start changed device to %s", c.Device().Label())
	}
	c.Stop()
	c.Wait()

	if obs.started != 1 {
		t.Errorf("started %d sessions, want 1", obs.started)
	}
}

func TestResultsArriveInOrder(t *testing.T) {
	rec := transcriber.NewFake(
		transcriber.FakeResult{Text: "one"},
		transcriber.FakeResult{Text: "two"},
		transcriber.FakeResult{Text: "three"},
	)
	c := newController(t, newStubMic(), rec, Options{})

	var buf strings.Builder
	var seqs []int
	c.SetHandler(func(r Result) {
		if !r.OK() {
			t.Errorf("unexpected failure: %v", r.Err)
			return
		}
		buf.WriteString(r.Text + " ")
		seqs = append(seqs, r.Seq)
		if len(seqs) == 3 {
			c.Stop()
		}
	})

	c.Start(nil)
	c.Wait()

	if got, want := buf.String(), "one two three "; got != want {
		t.Errorf("buffer = %q, want %q", got, want)
	}
	if fmt.Sprint(seqs) != "[1 2 3]" {
		t.Errorf("seqs = %v", seqs)
	}
	if rec.Calls() != 3 {
		t.Errorf("recognizer called %d times after stop, want 3", rec.Calls())
	}
}

func TestStopDuringRecognitionStillDelivers(t *testing.T) {
	rec := transcriber.NewFake(transcriber.FakeResult{Text: "late words"})
	rec.Hold()
	mic := newStubMic()
	c := newController(t, mic, rec, Options{})

	var mu sync.Mutex
	var got []Result
	c.SetHandler(func(r Result) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	})

	c.Start(nil)
	waitFor(t, rec.Entered(), "recognition")
	c.Stop()
	if s := c.State(); s != Stopping {
		t.Errorf("State() = %v while recognition in flight, want stopping", s)
	}
	rec.Release()
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Text != "late words" {
		t.Fatalf("delivered %+v, want one result %q", got, "late words")
	}
	if rec.Calls() != 1 {
		t.Errorf("recognizer called %d times, want 1", rec.Calls())
	}
	if c.State() != Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if n := mic.active.Load(); n != 0 {
		t.Errorf("%d sources left open", n)
	}
}

func TestUnintelligibleKeepsListening(t *testing.T) {
	rec := transcriber.NewFake(
		transcriber.FakeResult{Err: transcriber.ErrUnintelligible},
		transcriber.FakeResult{Err: transcriber.ErrUnintelligible},
		transcriber.FakeResult{Err: transcriber.ErrUnintelligible},
	)
	c := newController(t, newStubMic(), rec, Options{})

	var doc strings.Builder
	third := make(chan State, 1)
	n := 0
	c.SetHandler(func(r Result) {
		if r.OK() {
			doc.WriteString(r.Text + " ")
			return
		}
		if r.Failure != Unintelligible {
			t.Errorf("Failure = %v, want unintelligible", r.Failure)
		}
		n++
		if n == 3 {
			third <- c.State()
		}
	})

	c.Start(nil)
	select {
	case s := <-third:
		if s != Listening {
			t.Errorf("State() after three unintelligible results = %v, want listening", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	if c.State() != Listening {
		t.Errorf("controller stopped itself")
	}
	c.Stop()
	c.Wait()
	if doc.Len() != 0 {
		t.Errorf("document changed: %q", doc.String())
	}
}

func TestServiceUnavailableContinues(t *testing.T) {
	rec := transcriber.NewFake(
		transcriber.FakeResult{Err: fmt.Errorf("groq: %w: status 503", transcriber.ErrServiceUnavailable)},
		transcriber.FakeResult{Text: "back online"},
	)
	c := newController(t, newStubMic(), rec, Options{})

	var got []Result
	c.SetHandler(func(r Result) {
		got = append(got, r)
		if r.OK() {
			c.Stop()
		}
	})
	c.Start(nil)
	c.Wait()

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Failure != ServiceUnavailable || !errors.Is(got[0].Err, transcriber.ErrServiceUnavailable) {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Text != "back online" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestDeviceUnavailableRecovers(t *testing.T) {
	mic := newStubMic()
	mic.fail("Broken Mic", errors.New("device busy"))
	rec := transcriber.NewFake(transcriber.FakeResult{Text: "hello"})
	obs := &sessionObserver{}
	c := newController(t, mic, rec, Options{Observer: obs})

	var got []Result
	c.SetHandler(func(r Result) {
		got = append(got, r)
		if r.Failure == DeviceUnavailable {
			c.SelectDevice(nil)
		}
		if r.OK() {
			c.Stop()
		}
	})

	c.Start(&audio.DeviceInfo{Name: "Broken Mic"})
	c.Wait()

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(got), got)
	}
	if !errors.Is(got[0].Err, ErrDeviceUnavailable) || got[0].Failure != DeviceUnavailable {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Text != "hello" {
		t.Errorf("second = %+v", got[1])
	}
	mic.mu.Lock()
	defer mic.mu.Unlock()
	if fmt.Sprint(mic.opens) != "[Broken Mic system default]" {
		t.Errorf("opens = %v", mic.opens)
	}
	if obs.failures != 1 {
		t.Errorf("observer saw %d failures, want 1", obs.failures)
	}
}

func TestResumeFromStopping(t *testing.T) {
	rec := transcriber.NewFake(transcriber.FakeResult{Text: "first"}, transcriber.FakeResult{Text: "second"})
	rec.Hold()
	obs := &sessionObserver{}
	c := newController(t, newStubMic(), rec, Options{Observer: obs})

	results := make(chan Result, 4)
	c.SetHandler(func(r Result) { results <- r })

	c.Start(nil)
	waitFor(t, rec.Entered(), "recognition")
	c.Stop()
	c.Start(nil)
	if c.State() != Listening {
		t.Fatalf("State() = %v, want listening", c.State())
	}
	rec.Release()

	for _, want := range []string{"first", "second"} {
		select {
		case r := <-results:
			if r.Text != want {
				t.Errorf("got %q, want %q", r.Text, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	c.Stop()
	c.Wait()
	if obs.started != 1 {
		t.Errorf("started %d sessions, want 1", obs.started)
	}
}

func TestStateNotifications(t *testing.T) {
	var mu sync.Mutex
	var states []State
	rec := transcriber.NewFake()
	rec.Hold()
	c := newController(t, newStubMic(), rec, Options{OnState: func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}})

	c.Stop()
	c.Start(nil)
	waitFor(t, rec.Entered(), "recognition")
	c.Stop()
	rec.Release()
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(states) != "[listening stopping idle]" {
		t.Errorf("states = %v", states)
	}
}

func TestContextCancelEndsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, newStubMic(), transcriber.NewFake(), Options{})
	c.Start(nil)
	cancel()

	done := make(chan struct{})
	go func() { c.Wait(); close(done) }()
	waitFor(t, done, "loop exit")
	if c.State() != Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
}

func tonePCM(d time.Duration) []byte {
	const rate = 16000
	n := int(d.Seconds() * rate)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/rate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestCaptureDeviceReleasedEachCycle(t *testing.T) {
	fake := audio.NewFakeContext(tonePCM(300*time.Millisecond), false)
	fake.FailDevice("Unplugged", errors.New("no such source"))
	mic := audio.NewMicrophone(fake,
		audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		audio.EndpointConfig{Silence: 100 * time.Millisecond})
	rec := transcriber.NewFake(transcriber.FakeResult{Text: "a"}, transcriber.FakeResult{Text: "b"})
	c := newController(t, mic, rec, Options{})

	var got []Result
	c.SetHandler(func(r Result) {
		got = append(got, r)
		if !r.OK() {
			c.SelectDevice(nil)
			return
		}
		if r.Text == "b" {
			c.Stop()
		}
	})

	c.Start(&audio.DeviceInfo{Name: "Unplugged"})
	c.Wait()

	if len(got) != 3 || got[0].Failure != DeviceUnavailable {
		t.Fatalf("results = %+v", got)
	}
	if fake.Opened() != 2 {
		t.Errorf("opened %d captures, want 2", fake.Opened())
	}
	if fake.Active() != 0 {
		t.Errorf("%d captures still open", fake.Active())
	}
}

func TestClassify(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want Failure
	}{
		{nil, FailureNone},
		{fmt.Errorf("%w: busy", ErrDeviceUnavailable), DeviceUnavailable},
		{transcriber.ErrUnintelligible, Unintelligible},
		{fmt.Errorf("x: %w", transcriber.ErrServiceUnavailable), ServiceUnavailable},
		{errors.New("anything else"), ServiceUnavailable},
	} {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
