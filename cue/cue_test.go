package cue

import (
	"encoding/binary"
	"testing"
)

func TestSampleShapes(t *testing.T) {
	for _, tt := range []struct {
		name    string
		samples []int16
		want    int
	}{
		{"start", startSamples(), int(sampleRate * startDur)},
		{"stop", stopSamples(), int(sampleRate * stopDur)},
		{"error", errorSamples(), 2*int(sampleRate*errorDur) + int(sampleRate*errorGap)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if d := len(tt.samples) - tt.want; d < -2 || d > 2 {
				t.Errorf("len = %d, want %d", len(tt.samples), tt.want)
			}
			var peak int16
			for _, s := range tt.samples {
				peak = max(peak, s)
			}
			if peak < 1000 {
				t.Errorf("peak %d too quiet", peak)
			}
		})
	}
}

func TestTickDecays(t *testing.T) {
	s := tick(440, 0.2, 0.5, 40)
	head, tail := peak(s[:len(s)/10]), peak(s[len(s)*9/10:])
	if tail >= head/4 {
		t.Errorf("tail peak %d not well below head peak %d", tail, head)
	}
}

func TestDoubleBeepGapIsSilent(t *testing.T) {
	s := doubleBeep(350, 0.08, 0.05, 0.6, 30)
	beep := int(sampleRate * 0.08)
	gap := s[beep : beep+int(sampleRate*0.05)]
	if p := peak(gap); p != 0 {
		t.Errorf("gap peak = %d", p)
	}
}

func TestToBytes(t *testing.T) {
	buf := toBytes([]int16{1, -2, 32767})
	if len(buf) != 6 {
		t.Fatalf("len = %d", len(buf))
	}
	if got := int16(binary.LittleEndian.Uint16(buf[2:])); got != -2 {
		t.Errorf("second sample = %d", got)
	}
}

func TestDisabledPlayerIsSilent(t *testing.T) {
	p := New(false)
	p.Start()
	p.Stop()
	p.Error()
}

func peak(s []int16) int16 {
	var p int16
	for _, v := range s {
		if v < 0 {
			v = -v
		}
		p = max(p, v)
	}
	return p
}
