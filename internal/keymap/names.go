// Package keymap resolves characters and symbolic key names to evdev keycodes.
package keymap

import (
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Names is an immutable, case-insensitive table of symbolic key names.
type Names struct {
	codes map[string]uint32
}

// letterCodes are the evdev codes for a..z in alphabetical order.
var letterCodes = [26]evdev.EvCode{
	evdev.KEY_A, evdev.KEY_B, evdev.KEY_C, evdev.KEY_D, evdev.KEY_E,
	evdev.KEY_F, evdev.KEY_G, evdev.KEY_H, evdev.KEY_I, evdev.KEY_J,
	evdev.KEY_K, evdev.KEY_L, evdev.KEY_M, evdev.KEY_N, evdev.KEY_O,
	evdev.KEY_P, evdev.KEY_Q, evdev.KEY_R, evdev.KEY_S, evdev.KEY_T,
	evdev.KEY_U, evdev.KEY_V, evdev.KEY_W, evdev.KEY_X, evdev.KEY_Y,
	evdev.KEY_Z,
}

// digitCodes are the evdev codes for the top-row digits 0..9.
var digitCodes = [10]evdev.EvCode{
	evdev.KEY_0, evdev.KEY_1, evdev.KEY_2, evdev.KEY_3, evdev.KEY_4,
	evdev.KEY_5, evdev.KEY_6, evdev.KEY_7, evdev.KEY_8, evdev.KEY_9,
}

// NewNames builds the symbolic key table.
func NewNames() *Names {
	m := make(map[string]uint32, 96)
	add := func(code evdev.EvCode, names ...string) {
		for _, n := range names {
			m[n] = uint32(code)
		}
	}

	// Modifiers
	add(evdev.KEY_LEFTSHIFT, "shift", "lshift")
	add(evdev.KEY_RIGHTSHIFT, "rshift")
	add(evdev.KEY_LEFTCTRL, "ctrl", "control", "lctrl")
	add(evdev.KEY_RIGHTCTRL, "rctrl")
	add(evdev.KEY_LEFTALT, "alt", "lalt")
	add(evdev.KEY_RIGHTALT, "ralt", "altgr")
	add(evdev.KEY_LEFTMETA, "super", "meta", "win", "lsuper")
	add(evdev.KEY_RIGHTMETA, "rsuper")

	// Special keys
	add(evdev.KEY_ESC, "escape", "esc")
	add(evdev.KEY_ENTER, "return", "enter")
	add(evdev.KEY_TAB, "tab")
	add(evdev.KEY_BACKSPACE, "backspace")
	add(evdev.KEY_DELETE, "delete")
	add(evdev.KEY_INSERT, "insert")
	add(evdev.KEY_HOME, "home")
	add(evdev.KEY_END, "end")
	add(evdev.KEY_PAGEUP, "pageup")
	add(evdev.KEY_PAGEDOWN, "pagedown")
	add(evdev.KEY_SPACE, "space")
	add(evdev.KEY_CAPSLOCK, "capslock")
	add(evdev.KEY_NUMLOCK, "numlock")
	add(evdev.KEY_SCROLLLOCK, "scrolllock")
	add(evdev.KEY_SYSRQ, "print", "printscreen")
	add(evdev.KEY_PAUSE, "pause")
	add(evdev.KEY_COMPOSE, "menu")

	// Arrows
	add(evdev.KEY_UP, "up")
	add(evdev.KEY_DOWN, "down")
	add(evdev.KEY_LEFT, "left")
	add(evdev.KEY_RIGHT, "right")

	// f1..f12 are numbered consecutively from KEY_F1, so f11 and f12
	// share codes with numlock and scrolllock.
	for i := 0; i < 12; i++ {
		add(evdev.KEY_F1+evdev.EvCode(i), "f"+strconv.Itoa(i+1))
	}
	for i, code := range digitCodes {
		add(code, string(rune('0'+i)))
	}
	for i, code := range letterCodes {
		add(code, string(rune('a'+i)))
	}

	return &Names{codes: m}
}

// Lookup returns the keycode for name, ignoring case.
func (n *Names) Lookup(name string) (uint32, bool) {
	code, ok := n.codes[strings.ToLower(name)]
	return code, ok
}

// Len returns the number of names in the table.
func (n *Names) Len() int {
	return len(n.codes)
}
