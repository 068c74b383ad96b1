package typer

import (
	"errors"

	"eitype/internal/keymap"
)

var (
	// ErrConnection indicates a transport setup or handshake failure.
	ErrConnection = errors.New("connection error")

	// ErrKeymap indicates the keymap could not be loaded or compiled.
	ErrKeymap = errors.New("keymap error")

	// ErrUnknownKey indicates a symbolic key or modifier name is not recognized.
	ErrUnknownKey = keymap.ErrUnknownKey

	// ErrTyping indicates event emission failed, including flush retry exhaustion.
	ErrTyping = errors.New("typing error")

	// ErrNoKeyboard indicates no keyboard-capable device became available.
	ErrNoKeyboard = errors.New("no keyboard device available")

	// ErrCharNotFound indicates a character has no keycode under the active layout.
	ErrCharNotFound = keymap.ErrCharNotFound
)
