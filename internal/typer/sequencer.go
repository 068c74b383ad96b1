package typer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"eitype/internal/keymap"
)

// Sequencer executes actions against a resolver and an emitter and keeps
// track of held modifiers.
type Sequencer struct {
	resolver *keymap.Resolver
	emitter  *Emitter
	shift    uint32
	held     []uint32
	logger   *slog.Logger
}

// NewSequencer creates a sequencer.
func NewSequencer(r *keymap.Resolver, e *Emitter) *Sequencer {
	shift, err := r.ResolveName("shift")
	if err != nil {
		panic("typer: key table has no shift entry")
	}
	return &Sequencer{
		resolver: r,
		emitter:  e,
		shift:    shift,
		logger:   slog.Default().With("component", "sequencer"),
	}
}

// Held returns the held modifier keycodes in acquisition order.
func (s *Sequencer) Held() []uint32 {
	return slices.Clone(s.held)
}

// TypeText types text one character at a time. Shift wraps exactly one
// character.
func (s *Sequencer) TypeText(text string) error {
	s.logger.Debug("typing text", "len", len(text))
	for _, ch := range text {
		if err := s.typeRune(ch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) typeRune(ch rune) error {
	keycode, needsShift, err := s.resolver.ResolveRune(ch)
	if err != nil {
		return err
	}
	if !needsShift {
		return s.emitter.Tap(keycode)
	}

	if err := s.emitter.Press(s.shift); err != nil {
		// The press may still reach the server once the buffer drains.
		if rerr := s.emitter.Release(s.shift); rerr != nil {
			s.logger.Warn("failed to release shift", "error", rerr)
		}
		return err
	}
	if err := s.emitter.Tap(keycode); err != nil {
		if rerr := s.emitter.Release(s.shift); rerr != nil {
			s.logger.Warn("failed to release shift", "error", rerr)
		}
		return err
	}
	return s.emitter.Release(s.shift)
}

// PressKey taps a named key.
func (s *Sequencer) PressKey(name string) error {
	keycode, err := s.resolver.ResolveName(name)
	if err != nil {
		return err
	}
	s.logger.Debug("pressing key", "name", name, "keycode", keycode)
	return s.emitter.Tap(keycode)
}

// HoldModifier presses a modifier and keeps it down until
// ReleaseModifiers.
func (s *Sequencer) HoldModifier(name string) error {
	keycode, err := s.resolver.ResolveName(name)
	if err != nil {
		return err
	}
	s.logger.Debug("holding modifier", "name", name, "keycode", keycode)
	s.held = append(s.held, keycode)
	return s.emitter.Press(keycode)
}

// PressModifier taps a modifier without holding it.
func (s *Sequencer) PressModifier(name string) error {
	keycode, err := s.resolver.ResolveName(name)
	if err != nil {
		return err
	}
	s.logger.Debug("pressing modifier", "name", name, "keycode", keycode)
	return s.emitter.Tap(keycode)
}

// ReleaseModifiers releases held modifiers in reverse order. The stack is
// empty afterwards even if some releases fail.
func (s *Sequencer) ReleaseModifiers() error {
	var errs []error
	for len(s.held) > 0 {
		keycode := s.held[len(s.held)-1]
		s.held = s.held[:len(s.held)-1]
		s.logger.Debug("releasing held modifier", "keycode", keycode)
		if err := s.emitter.Release(keycode); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Execute runs actions in order and then releases every held modifier,
// whether or not an action failed.
func (s *Sequencer) Execute(actions []Action) (err error) {
	s.logger.Info("executing actions", "count", len(actions))
	defer func() {
		if rerr := s.ReleaseModifiers(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("releasing modifiers: %w", rerr))
		}
	}()

	for i, a := range actions {
		if err := s.run(a); err != nil {
			return fmt.Errorf("action %d %s: %w", i, a, err)
		}
	}
	return nil
}

func (s *Sequencer) run(a Action) error {
	switch a.Kind {
	case ActionType:
		return s.TypeText(a.Arg)
	case ActionKey:
		return s.PressKey(a.Arg)
	case ActionModifierHold:
		return s.HoldModifier(a.Arg)
	case ActionModifierPress:
		return s.PressModifier(a.Arg)
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}
