package keymap

import "unicode/utf8"

// Keysyms with a direct character meaning outside the identity ranges.
const (
	keysymReturn  = 0xff0d
	keysymTab     = 0xff09
	keysymSpace   = 0x0020
	keysymUnicode = 0x1000000
)

// KeysymToRune converts an XKB keysym to the character it produces.
// It reports false for keysyms with no character meaning.
func KeysymToRune(sym uint32) (rune, bool) {
	switch {
	case sym >= 0x20 && sym <= 0x7e:
		return rune(sym), true
	case sym >= 0xa0 && sym <= 0xff:
		return rune(sym), true
	case sym >= keysymUnicode:
		r := rune(sym - keysymUnicode)
		if !utf8.ValidRune(r) {
			return 0, false
		}
		return r, true
	}

	switch sym {
	case keysymReturn:
		return '\n', true
	case keysymTab:
		return '\t', true
	case keysymSpace:
		return ' ', true
	}
	return 0, false
}
