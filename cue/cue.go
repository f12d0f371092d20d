// Package cue plays the short sounds that mark dictation starting, stopping
// and failing to reach the microphone.
package cue

import (
	"encoding/binary"
	"math"
)

const (
	sampleRate = 44100

	// start: high, short tick
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60
	startDur    = 0.08

	// stop: lower, a little longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40
	stopDur    = 0.12

	// error: low double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
	errorDur    = 0.08
	errorGap    = 0.05
)

// Player plays cues asynchronously. A disabled Player is silent.
type Player struct {
	enabled bool
}

func New(enabled bool) *Player {
	if enabled {
		warm()
	}
	return &Player{enabled: enabled}
}

func (p *Player) Start() {
	if p.enabled {
		play(startSamples())
	}
}

func (p *Player) Stop() {
	if p.enabled {
		play(stopSamples())
	}
}

func (p *Player) Error() {
	if p.enabled {
		play(errorSamples())
	}
}

// tick is a decaying sine, mono 16-bit.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range n {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(beep)*2+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	return append(out, beep...)
}

func startSamples() []int16 { return tick(startFreq, startDur, startVolume, startDecay) }
func stopSamples() []int16  { return tick(stopFreq, stopDur, stopVolume, stopDecay) }
func errorSamples() []int16 {
	return doubleBeep(errorFreq, errorDur, errorGap, errorVolume, errorDecay)
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
