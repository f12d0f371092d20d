package dictation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stickies/audio"
	"stickies/log"
	"stickies/transcriber"
)

type State int

const (
	Idle State = iota
	Listening
	// Stopping is Listening with a stop request the loop has not seen yet.
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

const DefaultRetryDelay = 500 * time.Millisecond

// Handler receives every cycle result, in order, on the loop goroutine.
type Handler func(Result)

// Observer sees session bookkeeping. Calls come from the loop goroutine.
type Observer interface {
	SessionStarted(session string, device *audio.DeviceInfo)
	SessionEnded(session string, segments int)
	Recognized(r Result)
	Failed(r Result)
}

type Options struct {
	OnState    func(State)
	Observer   Observer
	RetryDelay time.Duration
}

// Controller runs at most one capture loop at a time. Start and Stop only
// flip state; the loop checks for a pending stop between cycles, so an
// in-flight capture or recognition is never cut short.
type Controller struct {
	ctx  context.Context
	mic  audio.Microphone
	rec  transcriber.Recognizer
	opts Options

	mu      sync.Mutex
	state   State
	device  *audio.DeviceInfo
	handler Handler
	done    chan struct{}
	wake    chan struct{}
}

// New binds a controller to ctx. Cancelling ctx ends any running loop at
// its next blocking point.
func New(ctx context.Context, mic audio.Microphone, rec transcriber.Recognizer, opts Options) *Controller {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Controller{
		ctx:  ctx,
		mic:  mic,
		rec:  rec,
		opts: opts,
		wake: make(chan struct{}, 1),
	}
}

func (c *Controller) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Controller) SetStateHandler(fn func(State)) {
	c.mu.Lock()
	c.opts.OnState = fn
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Device returns the device for the next cycle; nil is the system default.
func (c *Controller) Device() *audio.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device
}

func (c *Controller) SelectDevice(device *audio.DeviceInfo) {
	c.mu.Lock()
	prev := c.device
	c.device = device
	c.mu.Unlock()
	if prev.Label() != device.Label() {
		log.Infof("dictation device: %s -> %s", prev.Label(), device.Label())
	}
}

func (c *Controller) Start(device *audio.DeviceInfo) {
	c.mu.Lock()
	switch c.state {
	case Listening:
		c.mu.Unlock()
		return
	case Stopping:
		c.state = Listening
		c.mu.Unlock()
		c.notify(Listening)
		return
	}
	c.state = Listening
	c.device = device
	prev := c.done
	c.done = make(chan struct{})
	session := uuid.NewString()
	done := c.done
	c.mu.Unlock()

	c.notify(Listening)
	go c.loop(session, device, prev, done)
}

func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != Listening {
		c.mu.Unlock()
		return
	}
	c.state = Stopping
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	c.notify(Stopping)
}

// Wait blocks until the current loop, if any, has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) notify(s State) {
	c.mu.Lock()
	fn := c.opts.OnState
	c.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// proceed is the iteration boundary: it either returns the device for the
// next cycle or moves the controller to Idle.
func (c *Controller) proceed() (*audio.DeviceInfo, bool) {
	c.mu.Lock()
	if c.state == Listening && c.ctx.Err() == nil {
		dev := c.device
		c.mu.Unlock()
		return dev, true
	}
	c.state = Idle
	c.mu.Unlock()
	c.notify(Idle)
	return nil, false
}

func (c *Controller) loop(session string, device *audio.DeviceInfo, prev, done chan struct{}) {
	defer close(done)

	// a loop that just went Idle may still be closing its session
	if prev != nil {
		<-prev
	}

	// drain a wake left over from a previous session
	select {
	case <-c.wake:
	default:
	}

	log.SessionStart(session, device.Label(), c.rec.Name())
	if c.opts.Observer != nil {
		c.opts.Observer.SessionStarted(session, device)
	}

	seq, segments, failures := 0, 0, 0
	for {
		dev, ok := c.proceed()
		if !ok {
			break
		}

		res, ok := c.cycle(session, dev)
		if !ok {
			continue
		}
		seq++
		res.Seq = seq
		if res.OK() {
			segments++
		} else {
			failures++
			log.Failure(session, res.Failure.String(), res.Err)
		}
		c.deliver(res)

		if res.Failure == DeviceUnavailable || res.Failure == ServiceUnavailable {
			c.backoff()
		}
	}

	log.SessionEnd(session, segments, failures)
	if c.opts.Observer != nil {
		c.opts.Observer.SessionEnded(session, segments)
	}
}

// cycle runs one open/capture/recognize pass with the device released on
// every path. ok is false when there is nothing to deliver.
func (c *Controller) cycle(session string, device *audio.DeviceInfo) (Result, bool) {
	src, err := c.mic.Open(c.ctx, device)
	if err != nil {
		if c.ctx.Err() != nil {
			return Result{}, false
		}
		return failed(session, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)), true
	}
	defer src.Close()

	sample, err := src.Capture(c.ctx)
	if err != nil {
		if c.ctx.Err() != nil || errors.Is(err, audio.ErrListenTimeout) {
			return Result{}, false
		}
		return failed(session, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)), true
	}
	src.Close()

	start := time.Now()
	text, err := c.rec.Recognize(c.ctx, sample)
	if err != nil {
		if c.ctx.Err() != nil {
			return Result{}, false
		}
		return failed(session, err), true
	}
	log.Recognition(session, c.rec.Name(), sample.Duration(), time.Since(start), len(text))
	return Result{Session: session, Text: text}, true
}

func failed(session string, err error) Result {
	return Result{Session: session, Err: err, Failure: classify(err)}
}

func (c *Controller) deliver(res Result) {
	if obs := c.opts.Observer; obs != nil {
		if res.OK() {
			obs.Recognized(res)
		} else {
			obs.Failed(res)
		}
	}
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	if h != nil {
		h(res)
	}
}

func (c *Controller) backoff() {
	t := time.NewTimer(c.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.wake:
	case <-c.ctx.Done():
	}
}
