package main

import (
	"context"
	"slices"
	"time"

	"stickies/audio"
	"stickies/log"
)

const devicePollInterval = 3 * time.Second

// watchDevices polls for hotplugged inputs and calls onChange with the new
// list of names whenever it differs from the last one seen.
func watchDevices(ctx context.Context, reg *audio.Registry, onChange func(names []string)) {
	var last []string
	if devices, err := reg.ListDevices(); err == nil {
		last = deviceNames(devices)
	}

	ticker := time.NewTicker(devicePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		devices, err := reg.ListDevices()
		if err != nil {
			continue
		}
		names := deviceNames(devices)
		if slices.Equal(last, names) {
			continue
		}
		for _, name := range names {
			if !slices.Contains(last, name) {
				log.Info("device_connected: " + name)
			}
		}
		for _, name := range last {
			if !slices.Contains(names, name) {
				log.Info("device_disconnected: " + name)
			}
		}
		last = names
		onChange(names)
	}
}

func deviceNames(devices []audio.DeviceInfo) []string {
	names := make([]string, len(devices))
	for i := range devices {
		names[i] = devices[i].Name
	}
	return names
}
