// Package hotkey parses toggle chords and turns backend key events into
// exactly one toggle per physical press.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChord is wrapped by every ParseChord failure.
var ErrInvalidChord = errors.New("invalid hotkey chord")

// ErrUnsupported is returned by backends that are not compiled into this build.
var ErrUnsupported = errors.New("hotkey backend not supported in this build")

// Modifier is a bit set of chord modifiers.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Keysym is an X11 keysym value.
type Keysym uint32

// Chord is a parsed global shortcut.
type Chord struct {
	Mods Modifier
	Key  Keysym
	// Name is the canonical spelling, e.g. "ctrl+shift+space".
	Name string
}

func (c Chord) String() string {
	return c.Name
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"super":   ModSuper,
	"win":     ModSuper,
	"cmd":     ModSuper,
}

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "ctrl"},
	{ModShift, "shift"},
	{ModAlt, "alt"},
	{ModSuper, "super"},
}

var namedKeys = map[string]Keysym{
	"space":       0x0020,
	"enter":       0xff0d,
	"return":      0xff0d,
	"tab":         0xff09,
	"esc":         0xff1b,
	"escape":      0xff1b,
	"insert":      0xff63,
	"delete":      0xffff,
	"home":        0xff50,
	"end":         0xff57,
	"pageup":      0xff55,
	"pagedown":    0xff56,
	"pause":       0xff13,
	"scrolllock":  0xff14,
	"printscreen": 0xff61,
	"print":       0xff61,
}

// keysymF1 is XK_F1; F2..F24 follow contiguously.
const keysymF1 Keysym = 0xffbe

// ParseChord parses chords such as "F8", "ctrl+shift+space" or "<f8>".
func ParseChord(raw string) (Chord, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = strings.TrimSuffix(strings.TrimPrefix(text, "<"), ">")
	if text == "" {
		return Chord{}, fmt.Errorf("%w: empty", ErrInvalidChord)
	}

	parts := strings.Split(text, "+")
	var chord Chord
	for i, part := range parts {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(part, "<"), ">"))
		if part == "" {
			return Chord{}, fmt.Errorf("%w: %q has an empty component", ErrInvalidChord, raw)
		}

		if mod, ok := modifierNames[part]; ok {
			if i == len(parts)-1 {
				return Chord{}, fmt.Errorf("%w: %q has no key", ErrInvalidChord, raw)
			}
			if chord.Mods&mod != 0 {
				return Chord{}, fmt.Errorf("%w: %q repeats %s", ErrInvalidChord, raw, part)
			}
			chord.Mods |= mod
			continue
		}

		if i != len(parts)-1 {
			return Chord{}, fmt.Errorf("%w: %q has more than one key", ErrInvalidChord, raw)
		}
		key, name, ok := lookupKey(part)
		if !ok {
			return Chord{}, fmt.Errorf("%w: unknown key %q", ErrInvalidChord, part)
		}
		chord.Key = key
		chord.Name = canonicalName(chord.Mods, name)
	}
	return chord, nil
}

func lookupKey(name string) (Keysym, string, bool) {
	if key, ok := namedKeys[name]; ok {
		return key, name, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return Keysym(c), name, true
		}
	}
	if len(name) >= 2 && name[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(name[1:], "%d", &n); err == nil && fmt.Sprintf("f%d", n) == name && n >= 1 && n <= 24 {
			return keysymF1 + Keysym(n-1), name, true
		}
	}
	return 0, "", false
}

func canonicalName(mods Modifier, key string) string {
	parts := make([]string, 0, 5)
	for _, m := range modifierOrder {
		if mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, key), "+")
}
