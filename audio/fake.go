package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	wav "github.com/youpy/go-wav"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a fixed PCM clip followed by silence on every capture
// it opens. It backs the -test mode and the package tests of dictation.
type FakeContext struct {
	pcm        []byte
	sampleRate int
	realtime   bool

	mu       sync.Mutex
	devices  []DeviceInfo
	failures map[string]error
	opened   int
	active   int
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, sampleRate: 16000, realtime: realtime, failures: map[string]error{}}
}

// LoadFakeContext reads a 16-bit WAV file. Only the first channel is kept.
func LoadFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("wav format: %w", err)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("wav: %d-bit audio not supported, need 16-bit", format.BitsPerSample)
	}

	var pcm []byte
	for {
		samples, err := reader.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wav samples: %w", err)
		}
		for _, s := range samples {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(reader.IntValue(s, 0))))
		}
	}

	f := NewFakeContext(pcm, realtime)
	f.sampleRate = int(format.SampleRate)
	return f, nil
}

func (f *FakeContext) SampleRate() int { return f.sampleRate }

// SetDevices sets the raw enumeration result, empty names included.
func (f *FakeContext) SetDevices(devices ...DeviceInfo) {
	f.mu.Lock()
	f.devices = append([]DeviceInfo(nil), devices...)
	f.mu.Unlock()
}

// FailDevice makes NewCapture fail for the named device. An empty name
// targets the system default.
func (f *FakeContext) FailDevice(name string, err error) {
	f.mu.Lock()
	if err == nil {
		delete(f.failures, name)
	} else {
		f.failures[name] = err
	}
	f.mu.Unlock()
}

// Opened counts captures created so far; Active counts those not yet closed.
func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	name := ""
	if device != nil {
		name = device.Name
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failures[name]; err != nil {
		return nil, err
	}
	f.opened++
	f.active++
	return &FakeCapture{ctx: f, pcm: f.pcm, sampleRate: f.sampleRate, realtime: f.realtime}, nil
}

func (f *FakeContext) released() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
}

type FakeCapture struct {
	ctx        *FakeContext
	pcm        []byte
	sampleRate int
	realtime   bool

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.stopCh != nil {
		f.mu.Unlock()
		return nil
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done := f.stopCh, f.feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
	}

	go func() {
		defer close(done)
		silence := make([]byte, chunkBytes)
		pos := 0
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				chunk := make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
				pos = end
				continue
			}
			cb(silence, fakeFrameSize)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	f.stopCh, f.feedDone = nil, nil
	f.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	already := f.closed
	f.closed = true
	f.mu.Unlock()
	if !already {
		f.ctx.released()
	}
}
