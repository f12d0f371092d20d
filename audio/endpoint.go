package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

const (
	endpointFrame     = 30 * time.Millisecond
	speechOnsetFrames = 3 // consecutive voiced frames to confirm speech

	DefaultThreshold    = 0.015
	DefaultSilence      = 800 * time.Millisecond
	DefaultMaxUtterance = 30 * time.Second
	defaultPreRoll      = 300 * time.Millisecond
)

type EndpointEvent int

const (
	EndpointNone      EndpointEvent = iota
	EndpointOnset                   // speech started
	EndpointEnd                     // trailing silence after speech
	EndpointMaxLength               // utterance reached MaxUtterance
	EndpointTimeout                 // no speech within ListenTimeout
)

// Done reports whether the event terminates the utterance.
func (e EndpointEvent) Done() bool {
	return e == EndpointEnd || e == EndpointMaxLength || e == EndpointTimeout
}

type EndpointConfig struct {
	SampleRate   int
	Channels     int
	Threshold    float64       // normalized RMS above which a frame is voiced
	Silence      time.Duration // trailing silence that ends an utterance
	MaxUtterance time.Duration
	// ListenTimeout bounds the wait for speech onset. Zero waits forever.
	ListenTimeout time.Duration
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Silence <= 0 {
		c.Silence = DefaultSilence
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = DefaultMaxUtterance
	}
	return c
}

// Endpointer splits a PCM stream into one pause-delimited utterance using
// frame energy. It keeps a short pre-roll so the first syllable survives
// the onset debounce.
type Endpointer struct {
	cfg        EndpointConfig
	frameBytes int

	silenceFrames int
	maxFrames     int
	timeoutFrames int
	prerollFrames int

	pending   []byte
	preroll   [][]byte
	utterance bytes.Buffer

	inSpeech    bool
	onsetRun    int
	silentRun   int
	heardFrames int
	spokeFrames int
	done        bool
}

func NewEndpointer(cfg EndpointConfig) *Endpointer {
	cfg = cfg.withDefaults()
	perFrame := func(d time.Duration) int {
		return int(d / endpointFrame)
	}
	e := &Endpointer{
		cfg:           cfg,
		frameBytes:    cfg.SampleRate * int(endpointFrame/time.Millisecond) / 1000 * 2 * cfg.Channels,
		silenceFrames: max(perFrame(cfg.Silence), 1),
		maxFrames:     max(perFrame(cfg.MaxUtterance), 1),
		timeoutFrames: perFrame(cfg.ListenTimeout),
		prerollFrames: max(perFrame(defaultPreRoll), speechOnsetFrames),
	}
	return e
}

// Feed consumes PCM and returns the most significant event it produced.
// Once a terminating event has been returned further input is ignored.
func (e *Endpointer) Feed(pcm []byte) EndpointEvent {
	if e.done {
		return EndpointNone
	}
	e.pending = append(e.pending, pcm...)

	result := EndpointNone
	for len(e.pending) >= e.frameBytes {
		frame := make([]byte, e.frameBytes)
		copy(frame, e.pending[:e.frameBytes])
		e.pending = e.pending[e.frameBytes:]

		ev := e.frame(frame)
		if ev != EndpointNone {
			result = ev
		}
		if ev.Done() {
			e.done = true
			e.pending = nil
			break
		}
	}
	return result
}

func (e *Endpointer) frame(frame []byte) EndpointEvent {
	voiced := FrameRMS(frame) >= e.cfg.Threshold
	e.heardFrames++

	if !e.inSpeech {
		e.preroll = append(e.preroll, frame)
		if len(e.preroll) > e.prerollFrames {
			e.preroll = e.preroll[1:]
		}
		if voiced {
			e.onsetRun++
		} else {
			e.onsetRun = 0
		}
		if e.onsetRun >= speechOnsetFrames {
			e.inSpeech = true
			for _, f := range e.preroll {
				e.utterance.Write(f)
			}
			e.spokeFrames = len(e.preroll)
			e.preroll = nil
			return EndpointOnset
		}
		if e.timeoutFrames > 0 && e.heardFrames >= e.timeoutFrames {
			return EndpointTimeout
		}
		return EndpointNone
	}

	e.utterance.Write(frame)
	e.spokeFrames++
	if voiced {
		e.silentRun = 0
	} else {
		e.silentRun++
	}
	if e.silentRun >= e.silenceFrames {
		return EndpointEnd
	}
	if e.spokeFrames >= e.maxFrames {
		return EndpointMaxLength
	}
	return EndpointNone
}

// Utterance returns the PCM captured from speech onset to the end event.
func (e *Endpointer) Utterance() []byte {
	return e.utterance.Bytes()
}

func (e *Endpointer) InSpeech() bool { return e.inSpeech }

func (e *Endpointer) Reset() {
	e.pending = nil
	e.preroll = nil
	e.utterance.Reset()
	e.inSpeech = false
	e.onsetRun = 0
	e.silentRun = 0
	e.heardFrames = 0
	e.spokeFrames = 0
	e.done = false
}

// FrameRMS returns the normalized RMS level of 16-bit little-endian PCM.
func FrameRMS(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(n))
}
