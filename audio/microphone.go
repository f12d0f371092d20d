package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrListenTimeout is returned by Source.Capture when no speech started
// within EndpointConfig.ListenTimeout.
var ErrListenTimeout = errors.New("no speech before listen timeout")

const chunkBacklog = 256

// Microphone opens a capture source for one capture cycle.
type Microphone interface {
	Open(ctx context.Context, device *DeviceInfo) (Source, error)
}

// Source is an open, running input stream. Close must be called on every
// path once the cycle is over.
type Source interface {
	Capture(ctx context.Context) (Sample, error)
	Close()
}

type CaptureMicrophone struct {
	ctx      Context
	capture  CaptureConfig
	endpoint EndpointConfig
}

func NewMicrophone(ctx Context, capture CaptureConfig, endpoint EndpointConfig) *CaptureMicrophone {
	endpoint.SampleRate = int(capture.SampleRate)
	endpoint.Channels = int(capture.Channels)
	return &CaptureMicrophone{ctx: ctx, capture: capture, endpoint: endpoint}
}

func (m *CaptureMicrophone) Open(ctx context.Context, device *DeviceInfo) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev, err := m.ctx.NewCapture(device, m.capture)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device.Label(), err)
	}

	src := &captureSource{
		dev:      dev,
		chunks:   make(chan []byte, chunkBacklog),
		endpoint: m.endpoint,
		sample:   Sample{SampleRate: int(m.capture.SampleRate), Channels: int(m.capture.Channels)},
	}
	dev.SetCallback(src.onData)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("start %s: %w", device.Label(), err)
	}
	return src, nil
}

type captureSource struct {
	dev      CaptureDevice
	chunks   chan []byte
	endpoint EndpointConfig
	sample   Sample
	dropped  atomic.Int64

	closeOnce sync.Once
}

// onData runs on the audio thread and must never block it.
func (s *captureSource) onData(data []byte, _ uint32) {
	if len(data) == 0 {
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	select {
	case s.chunks <- pcm:
	default:
		s.dropped.Add(1)
	}
}

func (s *captureSource) Capture(ctx context.Context) (Sample, error) {
	ep := NewEndpointer(s.endpoint)
	for {
		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case pcm := <-s.chunks:
			switch ev := ep.Feed(pcm); ev {
			case EndpointEnd, EndpointMaxLength:
				out := s.sample
				out.PCM = append([]byte(nil), ep.Utterance()...)
				return out, nil
			case EndpointTimeout:
				return Sample{}, ErrListenTimeout
			}
		}
	}
}

// Dropped reports chunks discarded because the reader fell behind.
func (s *captureSource) Dropped() int64 { return s.dropped.Load() }

func (s *captureSource) Close() {
	s.closeOnce.Do(func() {
		s.dev.Stop()
		s.dev.ClearCallback()
		s.dev.Close()
	})
}
