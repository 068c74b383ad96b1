package typer

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"eitype/internal/ei"
)

// call is one request recorded by recordingTransport.
type call struct {
	op      string
	keycode uint32
	state   ei.KeyState
	serial  uint32
	seq     uint32
	ts      uint64
}

func (c call) String() string {
	switch c.op {
	case "key":
		return fmt.Sprintf("%s(%d)", c.state, c.keycode)
	default:
		return c.op
	}
}

// recordingTransport records requests and replays scripted flush results.
type recordingTransport struct {
	serial     uint32
	calls      []call
	flushErrs  []error
	failAfter  int
	failWith   error
	flushes    int
	closeCount int
}

func newRecorder() *recordingTransport {
	return &recordingTransport{serial: 7, failAfter: -1}
}

func (r *recordingTransport) Serial() uint32 { return r.serial }

func (r *recordingTransport) StartEmulating(serial, sequence uint32) {
	r.calls = append(r.calls, call{op: "start", serial: serial, seq: sequence})
}

func (r *recordingTransport) StopEmulating(serial uint32) {
	r.calls = append(r.calls, call{op: "stop", serial: serial})
}

func (r *recordingTransport) Key(keycode uint32, state ei.KeyState) {
	r.calls = append(r.calls, call{op: "key", keycode: keycode, state: state})
}

func (r *recordingTransport) Frame(serial uint32, timestamp uint64) {
	r.calls = append(r.calls, call{op: "frame", serial: serial, ts: timestamp})
}

func (r *recordingTransport) Flush() error {
	r.flushes++
	if len(r.flushErrs) > 0 {
		err := r.flushErrs[0]
		r.flushErrs = r.flushErrs[1:]
		return err
	}
	if r.failAfter >= 0 && r.flushes > r.failAfter {
		return r.failWith
	}
	return nil
}

func (r *recordingTransport) Disconnect() {
	r.calls = append(r.calls, call{op: "disconnect"})
}

func (r *recordingTransport) Close() error {
	r.closeCount++
	return nil
}

// keys returns the key transitions in order, formatted as "press(42)".
func (r *recordingTransport) keys() []string {
	var out []string
	for _, c := range r.calls {
		if c.op == "key" {
			out = append(out, c.String())
		}
	}
	return out
}

func (r *recordingTransport) ops() []string {
	var out []string
	for _, c := range r.calls {
		out = append(out, c.op)
	}
	return out
}

// sleepRecorder replaces time.Sleep.
type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.slept = append(s.slept, d)
}

func newTestSessionLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
