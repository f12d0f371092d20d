package dictation

import (
	"errors"

	"stickies/transcriber"
)

// ErrDeviceUnavailable wraps every failure to open or read the microphone.
var ErrDeviceUnavailable = errors.New("microphone unavailable")

type Failure int

const (
	FailureNone Failure = iota
	DeviceUnavailable
	Unintelligible
	ServiceUnavailable
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case DeviceUnavailable:
		return "device_unavailable"
	case Unintelligible:
		return "unintelligible"
	case ServiceUnavailable:
		return "service_unavailable"
	}
	return "unknown"
}

// Result is the outcome of one capture cycle.
type Result struct {
	Session string
	Seq     int
	Text    string
	Err     error
	Failure Failure
}

func (r Result) OK() bool { return r.Err == nil }

func classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrDeviceUnavailable):
		return DeviceUnavailable
	case errors.Is(err, transcriber.ErrUnintelligible):
		return Unintelligible
	default:
		return ServiceUnavailable
	}
}
