package keymap

import (
	"log/slog"
	"unicode"
)

// EvdevOffset is the difference between XKB keycodes and evdev keycodes.
const EvdevOffset = 8

// Keymap is a compiled, layout-aware keyboard description.
// Keycodes are in XKB numbering.
type Keymap interface {
	MinKeycode() uint32
	MaxKeycode() uint32
	NumLayoutsForKey(keycode uint32) uint32
	NumLevelsForKey(keycode, layout uint32) uint32
	SymsByLevel(keycode, layout, level uint32) []uint32
}

// Resolver maps characters and key names to evdev keycodes.
type Resolver struct {
	keymap Keymap
	layout uint32
	names  *Names
	logger *slog.Logger
}

// NewResolver creates a resolver. A nil keymap selects the static
// fallback table for character lookup.
func NewResolver(km Keymap, layoutIndex uint32, names *Names) *Resolver {
	if names == nil {
		names = NewNames()
	}
	return &Resolver{
		keymap: km,
		layout: layoutIndex,
		names:  names,
		logger: slog.Default().With("component", "keymap"),
	}
}

// LayoutIndex returns the layout used for character lookup.
func (r *Resolver) LayoutIndex() uint32 {
	return r.layout
}

// HasKeymap reports whether a compiled keymap backs character lookup.
func (r *Resolver) HasKeymap() bool {
	return r.keymap != nil
}

// ResolveName looks up a symbolic key or modifier name.
func (r *Resolver) ResolveName(name string) (uint32, error) {
	code, ok := r.names.Lookup(name)
	if !ok {
		return 0, &UnknownKeyError{Name: name}
	}
	return code, nil
}

// ResolveRune finds the evdev keycode producing ch and whether shift
// must be held while tapping it.
//
// Keycodes are scanned in ascending order and levels within a key in
// ascending order; the first match wins. Only level 1 counts as shifted,
// so characters on higher levels resolve to an unmodified tap.
func (r *Resolver) ResolveRune(ch rune) (keycode uint32, needsShift bool, err error) {
	if r.keymap == nil {
		return r.resolveFallback(ch)
	}

	km := r.keymap
	for k := uint64(km.MinKeycode()); k <= uint64(km.MaxKeycode()); k++ {
		kc := uint32(k)
		if r.layout >= km.NumLayoutsForKey(kc) {
			continue
		}
		levels := km.NumLevelsForKey(kc, r.layout)
		for level := uint32(0); level < levels; level++ {
			for _, sym := range km.SymsByLevel(kc, r.layout, level) {
				got, ok := KeysymToRune(sym)
				if !ok || got != ch {
					continue
				}
				if kc < EvdevOffset {
					continue
				}
				return kc - EvdevOffset, level == 1, nil
			}
		}
	}

	return 0, false, &CharNotFoundError{Char: ch}
}

func (r *Resolver) resolveFallback(ch rune) (uint32, bool, error) {
	if ch > unicode.MaxASCII {
		r.logger.Warn("could not find keycode for character", "char", string(ch))
		return 0, false, &CharNotFoundError{Char: ch}
	}

	lower := unicode.ToLower(ch)
	code, ok := r.names.Lookup(string(lower))
	if !ok {
		r.logger.Warn("could not find keycode for character", "char", string(ch))
		return 0, false, &CharNotFoundError{Char: ch}
	}
	return code, ch >= 'A' && ch <= 'Z', nil
}
