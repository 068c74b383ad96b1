// Package typer turns actions into key events on an EI keyboard device.
//
// A Session owns the connection, the compiled keymap and the held
// modifier stack. It is not safe for concurrent use.
package typer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eitype/internal/ei"
	"eitype/internal/keymap"
	"eitype/internal/xkb"
)

// DefaultClientName is announced to the EIS server during the handshake.
const DefaultClientName = "eitype"

// Options configures a session.
type Options struct {
	// Name is announced in the handshake. Empty means DefaultClientName.
	Name string

	// Keymap selects an explicit keymap. When zero, the keymap attached to
	// the keyboard device is used, then the system default.
	Keymap xkb.RuleNames

	// LayoutIndex selects the active layout. Nil means DetectLayout, then 0.
	LayoutIndex *uint32

	// DetectLayout reports the desktop's active layout index.
	DetectLayout func(context.Context) (uint32, bool)

	// Delay is applied after every press and release of a tap.
	Delay time.Duration

	// DeviceTimeout bounds the wait for a keyboard device. Zero waits
	// as long as ctx allows.
	DeviceTimeout time.Duration
}

// Session is an open emulation session.
type Session struct {
	transport Transport
	keymap    *xkb.Keymap
	resolver  *keymap.Resolver
	flow      *FlowController
	emitter   *Emitter
	seq       *Sequencer
	closed    bool
	logger    *slog.Logger
}

// Open performs the handshake on conn, waits for a keyboard device, loads
// the keymap and starts emulating. Open takes ownership of conn.
func Open(ctx context.Context, conn *ei.Conn, opts Options) (*Session, error) {
	logger := slog.Default().With("component", "session")

	name := opts.Name
	if name == "" {
		name = DefaultClientName
	}
	logger.Info("performing handshake")
	client, err := ei.Handshake(ctx, conn, name)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: handshake: %w", ErrConnection, err)
	}

	logger.Info("connected, waiting for devices")
	device, kb, err := waitForKeyboard(ctx, client, opts.DeviceTimeout, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	layout := layoutIndex(ctx, opts, logger)
	logger.Info("using layout index", "index", layout)

	var blob *ei.Keymap
	if km, ok := kb.Keymap(); ok {
		blob = km
	}
	compiled, err := loadKeymap(opts.Keymap, blob, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	var resolver *keymap.Resolver
	if compiled != nil {
		resolver = keymap.NewResolver(compiled, layout, nil)
	} else {
		resolver = keymap.NewResolver(nil, layout, nil)
	}

	t := &eiTransport{client: client, device: device, keyboard: kb}
	s := newSession(t, resolver, opts.Delay)
	s.keymap = compiled

	if err := s.emitter.StartEmulating(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(t Transport, r *keymap.Resolver, delay time.Duration) *Session {
	flow := NewFlowController()
	emitter := NewEmitter(t, flow, delay)
	return &Session{
		transport: t,
		resolver:  r,
		flow:      flow,
		emitter:   emitter,
		seq:       NewSequencer(r, emitter),
		logger:    slog.Default().With("component", "session"),
	}
}

func waitForKeyboard(ctx context.Context, c *ei.Client, timeout time.Duration, logger *slog.Logger) (*ei.Device, *ei.Keyboard, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		ev, err := c.NextEvent(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, fmt.Errorf("%w: timed out waiting for a keyboard", ErrNoKeyboard)
			}
			return nil, nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}

		switch ev := ev.(type) {
		case ei.Disconnected:
			logger.Error("disconnected", "reason", ev.Reason, "explanation", ev.Explanation)
			return nil, nil, fmt.Errorf("%w: %w", ErrConnection, ev.Err())
		case ei.SeatAdded:
			logger.Debug("seat added", "seat", ev.Seat.Name())
			if !ev.Seat.HasCapability(ei.CapabilityKeyboard) {
				continue
			}
			ev.Seat.Bind(ei.CapabilityKeyboard)
			if err := c.Flush(); err != nil {
				return nil, nil, fmt.Errorf("%w: bind seat: %w", ErrConnection, err)
			}
		case ei.DeviceAdded:
			logger.Debug("device added", "device", ev.Device.Name())
		case ei.DeviceResumed:
			logger.Debug("device resumed", "device", ev.Device.Name())
			if kb, ok := ev.Device.Keyboard(); ok {
				logger.Info("keyboard device available", "device", ev.Device.Name())
				return ev.Device, kb, nil
			}
		case ei.DevicePaused:
			logger.Debug("device paused", "device", ev.Device.Name())
		case ei.DeviceRemoved:
			logger.Debug("device removed", "device", ev.Device.Name())
		}
	}
}

func layoutIndex(ctx context.Context, opts Options, logger *slog.Logger) uint32 {
	if opts.LayoutIndex != nil {
		return *opts.LayoutIndex
	}
	if opts.DetectLayout != nil {
		if idx, ok := opts.DetectLayout(ctx); ok {
			return idx
		}
	}
	logger.Info("no active layout detected, defaulting to layout index 0")
	return 0
}

// loadKeymap compiles the session keymap: explicit names first, then the
// server's blob, then the system default. A nil keymap with a nil error
// means compilation support is missing and the static table applies.
func loadKeymap(names xkb.RuleNames, blob *ei.Keymap, logger *slog.Logger) (*xkb.Keymap, error) {
	var (
		km     *xkb.Keymap
		err    error
		source string
	)
	switch {
	case !names.IsZero():
		source = "configuration"
		logger.Info("loading keymap from configuration",
			"layout", orDefault(names.Layout, "(default)"),
			"variant", orDefault(names.Variant, "(none)"),
			"model", orDefault(names.Model, "(default)"))
		km, err = xkb.NewFromNames(names)
	case blob != nil:
		source = "server"
		text, terr := blob.Text()
		if terr != nil {
			return nil, fmt.Errorf("%w: %w", ErrKeymap, terr)
		}
		km, err = xkb.NewFromString(text)
	default:
		source = "system default"
		logger.Info("loading system default keymap")
		km, err = xkb.NewFromNames(xkb.RuleNames{})
	}

	if errors.Is(err, xkb.ErrUnavailable) {
		logger.Warn("keymap compilation unavailable, using built-in key table")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeymap, err)
	}

	if n := km.NumLayouts(); n > 0 {
		logger.Info("keymap loaded", "source", source, "layout", km.LayoutName(0), "layouts", n)
		for i := uint32(0); i < n; i++ {
			logger.Debug("keymap layout", "index", i, "name", km.LayoutName(i))
		}
	} else {
		logger.Info("keymap loaded", "source", source)
	}
	return km, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// LayoutIndex returns the layout used for character lookup.
func (s *Session) LayoutIndex() uint32 {
	return s.resolver.LayoutIndex()
}

func (s *Session) check() error {
	if s.closed {
		return fmt.Errorf("%w: session closed", ErrConnection)
	}
	return nil
}

// TypeText types text.
func (s *Session) TypeText(text string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.TypeText(text)
}

// PressKey taps a named key such as "return" or "f5".
func (s *Session) PressKey(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.PressKey(name)
}

// HoldModifier presses a modifier until ReleaseModifiers or Close.
func (s *Session) HoldModifier(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.HoldModifier(name)
}

// PressModifier taps a modifier.
func (s *Session) PressModifier(name string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.PressModifier(name)
}

// ReleaseModifiers releases every held modifier in reverse order.
func (s *Session) ReleaseModifiers() error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.ReleaseModifiers()
}

// Execute runs a batch of actions. Held modifiers are released when the
// batch ends, including when it fails part way.
func (s *Session) Execute(actions []Action) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.seq.Execute(actions)
}

// Close releases held keys, stops emulating, disconnects and frees the
// keymap. Only the first call has any effect.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("closing session")

	var errs []error
	if err := s.seq.ReleaseModifiers(); err != nil {
		errs = append(errs, err)
	}
	if err := s.emitter.ReleaseAll(); err != nil {
		errs = append(errs, err)
	}
	if err := s.emitter.StopEmulating(); err != nil {
		errs = append(errs, err)
	}
	s.transport.Disconnect()
	if err := s.flow.Flush(s.transport.Flush); err != nil {
		errs = append(errs, err)
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%w: close: %w", ErrConnection, err))
	}
	if s.keymap != nil {
		s.keymap.Close()
		s.keymap = nil
	}

	s.logger.Debug("session closed")
	return errors.Join(errs...)
}
