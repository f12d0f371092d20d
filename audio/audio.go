package audio

import (
	"strings"
	"time"
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the display name whether a device is a Bluetooth
// headset. Those usually fall back to a narrowband profile while capturing.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DeviceInfo identifies an input device within one enumeration snapshot.
// Index is only meaningful for the snapshot that produced it.
type DeviceInfo struct {
	Index int
	ID    string // opaque platform-specific identifier
	Name  string
}

// Label returns the display name, or "system default" for a nil device.
func (d *DeviceInfo) Label() string {
	if d == nil {
		return "system default"
	}
	return d.Name
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Sample is one captured utterance as signed 16-bit little-endian PCM.
type Sample struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

func (s Sample) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.PCM) / 2 / s.Channels
}

func (s Sample) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}
