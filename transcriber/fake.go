package transcriber

import (
	"context"
	"sync"
	"sync/atomic"

	"stickies/audio"
)

// FakeResult is one scripted reply of a FakeRecognizer.
type FakeResult struct {
	Text string
	Err  error
}

// FakeRecognizer replays scripted replies in order. Once the script runs out
// it answers ErrUnintelligible.
type FakeRecognizer struct {
	mu      sync.Mutex
	script  []FakeResult
	gate    chan struct{}
	entered chan struct{}
	calls   atomic.Int32
}

func NewFake(script ...FakeResult) *FakeRecognizer {
	return &FakeRecognizer{script: script}
}

func (f *FakeRecognizer) Name() string { return "fake" }

// Push appends replies to the script.
func (f *FakeRecognizer) Push(results ...FakeResult) {
	f.mu.Lock()
	f.script = append(f.script, results...)
	f.mu.Unlock()
}

// Hold makes every following Recognize block until Release. Entered
// receives once per blocked call.
func (f *FakeRecognizer) Hold() {
	f.mu.Lock()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 16)
	f.mu.Unlock()
}

func (f *FakeRecognizer) Entered() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entered
}

func (f *FakeRecognizer) Release() {
	f.mu.Lock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	f.mu.Unlock()
}

func (f *FakeRecognizer) Calls() int { return int(f.calls.Load()) }

func (f *FakeRecognizer) Recognize(ctx context.Context, _ audio.Sample) (string, error) {
	f.calls.Add(1)

	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	f.mu.Lock()
	var r FakeResult
	if len(f.script) > 0 {
		r = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	if r.Err != nil {
		return "", r.Err
	}
	return finish(r.Text)
}
