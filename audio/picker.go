package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var ErrPickCancelled = errors.New("device selection cancelled")

// PickDevice shows an arrow-key menu on the terminal and returns the chosen
// device. The first row is the system default and yields a nil device.
func PickDevice(reg *Registry) (*DeviceInfo, error) {
	devices, err := reg.ListDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	rows := len(devices) + 1
	cursor := 0
	label := func(i int) string {
		if i == 0 {
			return "System default"
		}
		name := devices[i-1].Name
		if IsBluetooth(name) {
			name += " \x1b[33m[bluetooth: lower quality]\x1b[0m"
		}
		return name
	}
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select microphone (↑/↓, Enter to confirm, q to cancel):\r\n\r\n")
		for i := 0; i < rows; i++ {
			if i == cursor {
				fmt.Printf("  \x1b[1;33m▶ %s\x1b[0m\r\n", label(i))
			} else {
				fmt.Printf("    %s\r\n", label(i))
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Print("\r\n")
			if cursor == 0 {
				return nil, nil
			}
			return &devices[cursor-1], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Print("\r\n")
			return nil, ErrPickCancelled
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			if cursor < rows-1 {
				cursor++
			}
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			if cursor > 0 {
				cursor--
			}
		}
		fmt.Printf("\x1b[%dA", rows+2)
		render()
	}
}
