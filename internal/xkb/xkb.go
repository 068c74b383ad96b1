// Package xkb compiles XKB keymaps with libxkbcommon.
//
// Builds without cgo get a stub whose constructors return ErrUnavailable;
// callers then fall back to the static keycode table.
package xkb

import "errors"

var (
	// ErrUnavailable indicates the binary was built without libxkbcommon.
	ErrUnavailable = errors.New("xkb: libxkbcommon support not compiled in")

	// ErrContext indicates the XKB context could not be created.
	ErrContext = errors.New("xkb: failed to create context")

	// ErrCompile indicates the keymap could not be compiled.
	ErrCompile = errors.New("xkb: failed to compile keymap")
)

// RuleNames selects a keymap through the XKB rules system. Empty fields
// fall back to libxkbcommon defaults (including XKB_DEFAULT_* variables).
type RuleNames struct {
	Rules   string
	Model   string
	Layout  string
	Variant string
	Options string
}

// IsZero reports whether no field is set.
func (n RuleNames) IsZero() bool {
	return n == RuleNames{}
}
