package keymap

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey indicates a symbolic key or modifier name is not recognized.
	ErrUnknownKey = errors.New("unknown key")

	// ErrCharNotFound indicates no keycode produces a character under the active layout.
	ErrCharNotFound = errors.New("character not found in keymap")
)

// UnknownKeyError carries the unrecognized name.
type UnknownKeyError struct {
	Name string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown key: %s", e.Name)
}

func (e *UnknownKeyError) Unwrap() error { return ErrUnknownKey }

// CharNotFoundError carries the unresolvable character.
type CharNotFoundError struct {
	Char rune
}

func (e *CharNotFoundError) Error() string {
	return fmt.Sprintf("character not found in keymap: %q", e.Char)
}

func (e *CharNotFoundError) Unwrap() error { return ErrCharNotFound }
