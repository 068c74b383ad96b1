//go:build cgo

package xkb

/*
#cgo pkg-config: xkbcommon
#include <stdlib.h>
#include <xkbcommon/xkbcommon.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Keymap is a compiled keymap. It must be released with Close.
type Keymap struct {
	ctx *C.struct_xkb_context
	km  *C.struct_xkb_keymap
}

// NewFromNames compiles a keymap from RMLVO names.
func NewFromNames(names RuleNames) (*Keymap, error) {
	ctx := C.xkb_context_new(C.XKB_CONTEXT_NO_FLAGS)
	if ctx == nil {
		return nil, ErrContext
	}

	var rn C.struct_xkb_rule_names
	var allocated []*C.char
	set := func(v string) *C.char {
		if v == "" {
			return nil
		}
		cs := C.CString(v)
		allocated = append(allocated, cs)
		return cs
	}
	rn.rules = set(names.Rules)
	rn.model = set(names.Model)
	rn.layout = set(names.Layout)
	rn.variant = set(names.Variant)
	rn.options = set(names.Options)
	defer func() {
		for _, cs := range allocated {
			C.free(unsafe.Pointer(cs))
		}
	}()

	km := C.xkb_keymap_new_from_names(ctx, &rn, C.XKB_KEYMAP_COMPILE_NO_FLAGS)
	if km == nil {
		C.xkb_context_unref(ctx)
		return nil, fmt.Errorf("%w from names (layout=%q variant=%q model=%q)",
			ErrCompile, names.Layout, names.Variant, names.Model)
	}
	return &Keymap{ctx: ctx, km: km}, nil
}

// NewFromString compiles a keymap from its XKB text (TEXT_V1) form.
func NewFromString(text string) (*Keymap, error) {
	ctx := C.xkb_context_new(C.XKB_CONTEXT_NO_FLAGS)
	if ctx == nil {
		return nil, ErrContext
	}

	cs := C.CString(text)
	defer C.free(unsafe.Pointer(cs))

	km := C.xkb_keymap_new_from_string(ctx, cs, C.XKB_KEYMAP_FORMAT_TEXT_V1, C.XKB_KEYMAP_COMPILE_NO_FLAGS)
	if km == nil {
		C.xkb_context_unref(ctx)
		return nil, fmt.Errorf("%w from string (%d bytes)", ErrCompile, len(text))
	}
	return &Keymap{ctx: ctx, km: km}, nil
}

// MinKeycode returns the lowest keycode in the keymap.
func (k *Keymap) MinKeycode() uint32 {
	return uint32(C.xkb_keymap_min_keycode(k.km))
}

// MaxKeycode returns the highest keycode in the keymap.
func (k *Keymap) MaxKeycode() uint32 {
	return uint32(C.xkb_keymap_max_keycode(k.km))
}

// NumLayouts returns the number of layouts in the keymap.
func (k *Keymap) NumLayouts() uint32 {
	return uint32(C.xkb_keymap_num_layouts(k.km))
}

// LayoutName returns the name of a layout, or "" if it has none.
func (k *Keymap) LayoutName(layout uint32) string {
	name := C.xkb_keymap_layout_get_name(k.km, C.xkb_layout_index_t(layout))
	if name == nil {
		return ""
	}
	return C.GoString(name)
}

// NumLayoutsForKey returns the number of layouts that bind keycode.
func (k *Keymap) NumLayoutsForKey(keycode uint32) uint32 {
	return uint32(C.xkb_keymap_num_layouts_for_key(k.km, C.xkb_keycode_t(keycode)))
}

// NumLevelsForKey returns the number of shift levels of keycode in layout.
func (k *Keymap) NumLevelsForKey(keycode, layout uint32) uint32 {
	return uint32(C.xkb_keymap_num_levels_for_key(k.km, C.xkb_keycode_t(keycode), C.xkb_layout_index_t(layout)))
}

// SymsByLevel returns a copy of the keysyms bound at a level.
func (k *Keymap) SymsByLevel(keycode, layout, level uint32) []uint32 {
	var syms *C.xkb_keysym_t
	n := C.xkb_keymap_key_get_syms_by_level(k.km, C.xkb_keycode_t(keycode),
		C.xkb_layout_index_t(layout), C.xkb_level_index_t(level), &syms)
	if n <= 0 || syms == nil {
		return nil
	}
	raw := unsafe.Slice(syms, int(n))
	out := make([]uint32, len(raw))
	for i, s := range raw {
		out[i] = uint32(s)
	}
	return out
}

// Close releases the keymap and its context. It is safe to call twice.
func (k *Keymap) Close() error {
	if k.km != nil {
		C.xkb_keymap_unref(k.km)
		k.km = nil
	}
	if k.ctx != nil {
		C.xkb_context_unref(k.ctx)
		k.ctx = nil
	}
	return nil
}
