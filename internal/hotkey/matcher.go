package hotkey

// X11 modifier keysyms.
const (
	keysymShiftL   Keysym = 0xffe1
	keysymShiftR   Keysym = 0xffe2
	keysymControlL Keysym = 0xffe3
	keysymControlR Keysym = 0xffe4
	keysymAltL     Keysym = 0xffe9
	keysymAltR     Keysym = 0xffea
	keysymSuperL   Keysym = 0xffeb
	keysymSuperR   Keysym = 0xffec
)

// Matcher tracks modifier state from a raw key stream and reports when the
// chord key goes down or up. It is used by passive hook backends that see
// every key on the keyboard.
type Matcher struct {
	chord Chord
	held  map[Keysym]bool
	down  bool
}

// NewMatcher returns a matcher for chord.
func NewMatcher(chord Chord) *Matcher {
	return &Matcher{chord: chord, held: make(map[Keysym]bool)}
}

// Feed consumes one raw key transition. It returns an event when the chord
// key changes state with the chord's modifiers held.
func (m *Matcher) Feed(sym Keysym, pressed bool) (KeyEvent, bool) {
	sym = normalizeKeysym(sym)
	if modifierOf(sym) != 0 {
		if pressed {
			m.held[sym] = true
		} else {
			delete(m.held, sym)
		}
		return KeyEvent{}, false
	}

	if sym != m.chord.Key {
		return KeyEvent{}, false
	}
	if pressed {
		if m.mods() != m.chord.Mods {
			return KeyEvent{}, false
		}
		m.down = true
		return KeyEvent{Pressed: true}, true
	}
	if !m.down {
		return KeyEvent{}, false
	}
	m.down = false
	return KeyEvent{Pressed: false}, true
}

func (m *Matcher) mods() Modifier {
	var mods Modifier
	for sym := range m.held {
		mods |= modifierOf(sym)
	}
	return mods
}

func modifierOf(sym Keysym) Modifier {
	switch sym {
	case keysymShiftL, keysymShiftR:
		return ModShift
	case keysymControlL, keysymControlR:
		return ModCtrl
	case keysymAltL, keysymAltR:
		return ModAlt
	case keysymSuperL, keysymSuperR:
		return ModSuper
	default:
		return 0
	}
}

// normalizeKeysym folds shifted Latin letters onto their lowercase keysym.
func normalizeKeysym(sym Keysym) Keysym {
	if sym >= 'A' && sym <= 'Z' {
		return sym + ('a' - 'A')
	}
	return sym
}
