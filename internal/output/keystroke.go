package output

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// uinputWarmup is how long a fresh uinput device needs before the compositor
// or X server accepts its events.
const uinputWarmup = 2 * time.Second

var errUnsupportedKey = errors.New("unsupported paste shortcut")

// keyCombo is a parsed "MODS,KEY" shortcut such as "CTRL,V" or "CTRL SHIFT,V".
type keyCombo struct {
	name  string
	ctrl  bool
	shift bool
	alt   bool
	key   int
}

var letterKeys = map[string]int{
	"A": keybd_event.VK_A, "B": keybd_event.VK_B, "C": keybd_event.VK_C, "D": keybd_event.VK_D,
	"E": keybd_event.VK_E, "F": keybd_event.VK_F, "G": keybd_event.VK_G, "H": keybd_event.VK_H,
	"I": keybd_event.VK_I, "J": keybd_event.VK_J, "K": keybd_event.VK_K, "L": keybd_event.VK_L,
	"M": keybd_event.VK_M, "N": keybd_event.VK_N, "O": keybd_event.VK_O, "P": keybd_event.VK_P,
	"Q": keybd_event.VK_Q, "R": keybd_event.VK_R, "S": keybd_event.VK_S, "T": keybd_event.VK_T,
	"U": keybd_event.VK_U, "V": keybd_event.VK_V, "W": keybd_event.VK_W, "X": keybd_event.VK_X,
	"Y": keybd_event.VK_Y, "Z": keybd_event.VK_Z,
}

// parseShortcut reads paste.shortcut in Hyprland sendshortcut notation.
func parseShortcut(shortcut string) (keyCombo, error) {
	mods, key, ok := strings.Cut(strings.TrimSpace(shortcut), ",")
	if !ok {
		mods, key = "", shortcut
	}
	combo := keyCombo{name: strings.TrimSpace(shortcut)}

	code, found := letterKeys[strings.ToUpper(strings.TrimSpace(key))]
	if !found {
		return keyCombo{}, fmt.Errorf("%w %q: key must be a letter", errUnsupportedKey, shortcut)
	}
	combo.key = code

	for _, mod := range strings.Fields(strings.ToUpper(mods)) {
		switch mod {
		case "CTRL", "CONTROL":
			combo.ctrl = true
		case "SHIFT":
			combo.shift = true
		case "ALT":
			combo.alt = true
		default:
			return keyCombo{}, fmt.Errorf("%w %q: modifier %s", errUnsupportedKey, shortcut, mod)
		}
	}
	return combo, nil
}

// keyboard is a lazily opened uinput virtual keyboard shared by every paste.
type keyboard struct {
	mu    sync.Mutex
	bond  *keybd_event.KeyBonding
	ready time.Time
}

var virtualKeyboard = &keyboard{}

// sendKeys taps combo on the focused window.
var sendKeys = virtualKeyboard.tap

// open creates the device once. Callers hold k.mu.
func (k *keyboard) open() error {
	if k.bond != nil {
		return nil
	}
	bond, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("open virtual keyboard (is /dev/uinput writable?): %w", err)
	}
	k.bond = &bond
	k.ready = time.Now().Add(uinputWarmup)
	return nil
}

func (k *keyboard) tap(ctx context.Context, combo keyCombo) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.open(); err != nil {
		return err
	}
	if wait := time.Until(k.ready); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	k.bond.HasCTRL(combo.ctrl)
	k.bond.HasSHIFT(combo.shift)
	k.bond.HasALT(combo.alt)
	k.bond.SetKeys(combo.key)
	if err := k.bond.Launching(); err != nil {
		return fmt.Errorf("send %s: %w", combo.name, err)
	}
	return nil
}

// warm opens the device ahead of the first paste.
func (k *keyboard) warm() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.open()
}
