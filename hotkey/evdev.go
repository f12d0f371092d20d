package hotkey

import (
	"encoding/binary"
	"fmt"
)

// Linux input event codes, from <linux/input-event-codes.h>.
const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1

	inputEventSize = 24
)

var (
	ctrlCodes  = []uint16{29, 97}
	shiftCodes = []uint16{42, 54}
	altCodes   = []uint16{56, 100}
	superCodes = []uint16{125, 126}
)

var keyCodes = map[string]uint16{
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"Q": 16, "W": 17, "E": 18, "R": 19, "T": 20, "Y": 21, "U": 22, "I": 23, "O": 24, "P": 25,
	"A": 30, "S": 31, "D": 32, "F": 33, "G": 34, "H": 35, "J": 36, "K": 37, "L": 38,
	"Z": 44, "X": 45, "C": 46, "V": 47, "B": 48, "N": 49, "M": 50,
	"Space": 57,
	"F1": 59, "F2": 60, "F3": 61, "F4": 62, "F5": 63, "F6": 64, "F7": 65, "F8": 66, "F9": 67, "F10": 68,
	"F11": 87, "F12": 88,
}

type keyEvent struct {
	code  uint16
	value int32
}

// decodeEvents extracts key events from raw struct input_event records
// (64-bit layout). Non-key events and a trailing partial record are skipped.
func decodeEvents(buf []byte) []keyEvent {
	var events []keyEvent
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		if binary.LittleEndian.Uint16(buf[i+16:]) != evKey {
			continue
		}
		events = append(events, keyEvent{
			code:  binary.LittleEndian.Uint16(buf[i+18:]),
			value: int32(binary.LittleEndian.Uint32(buf[i+20:])),
		})
	}
	return events
}

// matcher tracks modifier state on one keyboard and reports when the combo
// goes down and when its key comes back up. Modifiers outside the combo
// must not be held, so Ctrl+Shift+D does not fire on Ctrl+Shift+Alt+D.
type matcher struct {
	combo Combo
	key   uint16
	held  map[uint16]bool
	down  bool
}

func newMatcher(c Combo) (*matcher, error) {
	code, ok := keyCodes[c.Key]
	if !ok {
		return nil, fmt.Errorf("%w: no key code for %q", ErrBadCombo, c.Key)
	}
	return &matcher{combo: c, key: code, held: make(map[uint16]bool)}, nil
}

func (m *matcher) anyHeld(codes []uint16) bool {
	for _, c := range codes {
		if m.held[c] {
			return true
		}
	}
	return false
}

func (m *matcher) modifiersMatch() bool {
	return m.anyHeld(ctrlCodes) == m.combo.Ctrl &&
		m.anyHeld(shiftCodes) == m.combo.Shift &&
		m.anyHeld(altCodes) == m.combo.Alt &&
		m.anyHeld(superCodes) == m.combo.Super
}

// feed returns (true, false) when the combo is pressed and (false, true)
// when its key is released after a press. Autorepeat (value 2) is ignored.
func (m *matcher) feed(ev keyEvent) (pressed, released bool) {
	if ev.code != m.key {
		switch ev.value {
		case keyPress:
			m.held[ev.code] = true
		case keyRelease:
			delete(m.held, ev.code)
		}
		return false, false
	}
	switch {
	case ev.value == keyPress && !m.down && m.modifiersMatch():
		m.down = true
		return true, false
	case ev.value == keyRelease && m.down:
		m.down = false
		return false, true
	}
	return false, false
}
