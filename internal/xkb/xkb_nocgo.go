//go:build !cgo

package xkb

// Keymap is unavailable without cgo. Its methods report an empty keymap.
type Keymap struct{}

// NewFromNames always returns ErrUnavailable.
func NewFromNames(RuleNames) (*Keymap, error) { return nil, ErrUnavailable }

// NewFromString always returns ErrUnavailable.
func NewFromString(string) (*Keymap, error) { return nil, ErrUnavailable }

// MinKeycode returns 0.
func (k *Keymap) MinKeycode() uint32 { return 0 }

// MaxKeycode returns 0.
func (k *Keymap) MaxKeycode() uint32 { return 0 }

// NumLayouts returns 0.
func (k *Keymap) NumLayouts() uint32 { return 0 }

// LayoutName returns "".
func (k *Keymap) LayoutName(uint32) string { return "" }

// NumLayoutsForKey returns 0.
func (k *Keymap) NumLayoutsForKey(uint32) uint32 { return 0 }

// NumLevelsForKey returns 0.
func (k *Keymap) NumLevelsForKey(uint32, uint32) uint32 { return 0 }

// SymsByLevel returns nil.
func (k *Keymap) SymsByLevel(uint32, uint32, uint32) []uint32 { return nil }

// Close does nothing.
func (k *Keymap) Close() error { return nil }
