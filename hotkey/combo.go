package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

const DefaultCombo = "Ctrl+Shift+D"

var ErrBadCombo = errors.New("invalid hotkey combo")

// Combo is a parsed shortcut: one key plus held modifiers.
type Combo struct {
	Ctrl, Shift, Alt, Super bool
	// Key is A-Z, 0-9, Space or F1-F12.
	Key string
}

// ParseCombo reads a "+"-separated combo such as "Ctrl+Shift+D" or
// "alt+space". At least one modifier is required so typing in the note
// never triggers it.
func ParseCombo(s string) (Combo, error) {
	var c Combo
	parts := strings.Split(s, "+")
	for i, raw := range parts {
		part := strings.TrimSpace(raw)
		if i < len(parts)-1 {
			switch strings.ToLower(part) {
			case "ctrl", "control":
				c.Ctrl = true
			case "shift":
				c.Shift = true
			case "alt", "option", "opt":
				c.Alt = true
			case "super", "cmd", "win", "meta":
				c.Super = true
			default:
				return Combo{}, fmt.Errorf("%w %q: unknown modifier %q", ErrBadCombo, s, part)
			}
			continue
		}
		key := normalizeKey(part)
		if key == "" {
			return Combo{}, fmt.Errorf("%w %q: unsupported key %q", ErrBadCombo, s, part)
		}
		c.Key = key
	}
	if !c.Ctrl && !c.Shift && !c.Alt && !c.Super {
		return Combo{}, fmt.Errorf("%w %q: needs a modifier", ErrBadCombo, s)
	}
	return c, nil
}

// MustParseCombo is for combos known at compile time.
func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

func normalizeKey(k string) string {
	up := strings.ToUpper(k)
	switch {
	case len(up) == 1 && (up[0] >= 'A' && up[0] <= 'Z' || up[0] >= '0' && up[0] <= '9'):
		return up
	case up == "SPACE":
		return "Space"
	}
	for n := 1; n <= 12; n++ {
		if up == fmt.Sprintf("F%d", n) {
			return up
		}
	}
	return ""
}

// String renders the combo the way menus show it.
func (c Combo) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if c.Shift {
		parts = append(parts, "Shift")
	}
	if c.Alt {
		parts = append(parts, "Alt")
	}
	if c.Super {
		parts = append(parts, "Super")
	}
	return strings.Join(append(parts, c.Key), "+")
}
