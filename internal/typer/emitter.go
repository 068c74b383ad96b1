package typer

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"eitype/internal/ei"
	"eitype/internal/logging"
)

// Emitter turns key transitions into key + frame requests, each flushed
// through the flow controller.
type Emitter struct {
	t      Transport
	flow   *FlowController
	delay  time.Duration
	sleep  func(time.Duration)
	logger *slog.Logger

	start    time.Time
	now      func() time.Time
	lastTS   uint64
	sequence uint32

	// pressed holds keys pressed and not yet released, in press order.
	pressed   []uint32
	emulating bool
}

// NewEmitter creates an emitter. Timestamps count from this call.
func NewEmitter(t Transport, flow *FlowController, delay time.Duration) *Emitter {
	return &Emitter{
		t:        t,
		flow:     flow,
		delay:    delay,
		sleep:    time.Sleep,
		logger:   slog.Default().With("component", "emitter"),
		start:    time.Now(),
		now:      time.Now,
		sequence: 1,
	}
}

// Sequence returns the sequence number the next StartEmulating will use.
func (e *Emitter) Sequence() uint32 { return e.sequence }

// Emulating reports whether an emulation window is open.
func (e *Emitter) Emulating() bool { return e.emulating }

// Pressed returns a copy of the keys currently held down.
func (e *Emitter) Pressed() []uint32 { return slices.Clone(e.pressed) }

// timestamp returns microseconds since the emitter was created. It never
// decreases.
func (e *Emitter) timestamp() uint64 {
	ts := uint64(e.now().Sub(e.start).Microseconds())
	if ts < e.lastTS {
		ts = e.lastTS
	}
	e.lastTS = ts
	return ts
}

func (e *Emitter) flush() error {
	return e.flow.Flush(e.t.Flush)
}

// StartEmulating opens the emulation window and advances the sequence.
func (e *Emitter) StartEmulating() error {
	e.t.StartEmulating(e.t.Serial(), e.sequence)
	e.sequence++
	e.emulating = true
	return e.flush()
}

// StopEmulating closes the emulation window. It is a no-op when none is open.
func (e *Emitter) StopEmulating() error {
	if !e.emulating {
		return nil
	}
	e.emulating = false
	e.t.StopEmulating(e.t.Serial())
	return e.flush()
}

func (e *Emitter) emit(keycode uint32, state ei.KeyState) error {
	e.logger.Log(context.Background(), logging.LevelTrace, "key", "keycode", keycode, "state", state)
	e.t.Key(keycode, state)
	e.t.Frame(e.t.Serial(), e.timestamp())
	return e.flush()
}

// Press sends a key press in its own frame.
func (e *Emitter) Press(keycode uint32) error {
	if !slices.Contains(e.pressed, keycode) {
		e.pressed = append(e.pressed, keycode)
	}
	return e.emit(keycode, ei.KeyPressed)
}

// Release sends a key release in its own frame.
func (e *Emitter) Release(keycode uint32) error {
	if i := slices.Index(e.pressed, keycode); i >= 0 {
		e.pressed = slices.Delete(e.pressed, i, i+1)
	}
	return e.emit(keycode, ei.KeyReleased)
}

// Tap presses and releases keycode, waiting the configured delay after each.
func (e *Emitter) Tap(keycode uint32) error {
	if err := e.Press(keycode); err != nil {
		return err
	}
	e.pause()
	if err := e.Release(keycode); err != nil {
		return err
	}
	e.pause()
	return nil
}

func (e *Emitter) pause() {
	if e.delay > 0 {
		e.sleep(e.delay)
	}
}

// ReleaseAll releases every key still down, most recent first.
func (e *Emitter) ReleaseAll() error {
	var first error
	for len(e.pressed) > 0 {
		code := e.pressed[len(e.pressed)-1]
		if err := e.Release(code); err != nil && first == nil {
			first = err
		}
	}
	return first
}
