package audio

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoSuchDevice = errors.New("no such input device")

// Registry enumerates input devices on demand. It keeps no state between
// calls so hot-plugged devices show up on the next query.
type Registry struct {
	ctx Context
}

func NewRegistry(ctx Context) *Registry {
	return &Registry{ctx: ctx}
}

// ListDevices returns the selectable input devices in platform order.
// Devices reporting an empty name are skipped; Index counts only the
// devices that were kept.
func (r *Registry) ListDevices() ([]DeviceInfo, error) {
	raw, err := r.ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	devices := make([]DeviceInfo, 0, len(raw))
	for _, d := range raw {
		if strings.TrimSpace(d.Name) == "" {
			continue
		}
		d.Index = len(devices)
		devices = append(devices, d)
	}
	return devices, nil
}

// ResolveByName looks the name up in a fresh enumeration. Names are not
// unique; the first match wins.
func (r *Registry) ResolveByName(name string) (*DeviceInfo, error) {
	devices, err := r.ListDevices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchDevice, name)
}
