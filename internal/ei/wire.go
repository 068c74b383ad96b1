package ei

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const headerSize = 16

// message is one decoded frame.
type message struct {
	object uint64
	opcode uint32
	body   []byte
}

// encoder appends arguments in wire format. Integers use host byte order.
type encoder struct {
	buf []byte
}

func (e *encoder) uint32(v uint32) *encoder {
	e.buf = binary.NativeEndian.AppendUint32(e.buf, v)
	return e
}

func (e *encoder) int32(v int32) *encoder {
	return e.uint32(uint32(v))
}

func (e *encoder) uint64(v uint64) *encoder {
	e.buf = binary.NativeEndian.AppendUint64(e.buf, v)
	return e
}

func (e *encoder) float32(v float32) *encoder {
	return e.uint32(math.Float32bits(v))
}

// string writes a length-prefixed, NUL-terminated, 4-byte padded string.
// The length includes the terminator.
func (e *encoder) string(s string) *encoder {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	n := len(s) + 1
	e.uint32(uint32(n))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	for pad := (4 - n%4) % 4; pad > 0; pad-- {
		e.buf = append(e.buf, 0)
	}
	return e
}

// appendMessage frames body for object/opcode and appends it to dst.
func appendMessage(dst []byte, object uint64, opcode uint32, body []byte) []byte {
	dst = binary.NativeEndian.AppendUint64(dst, object)
	dst = binary.NativeEndian.AppendUint32(dst, uint32(headerSize+len(body)))
	dst = binary.NativeEndian.AppendUint32(dst, opcode)
	return append(dst, body...)
}

// splitMessage extracts the first complete frame from buf. ok is false
// when buf holds only a partial frame.
func splitMessage(buf []byte) (msg message, rest []byte, ok bool, err error) {
	if len(buf) < headerSize {
		return message{}, buf, false, nil
	}
	length := binary.NativeEndian.Uint32(buf[8:12])
	if length < headerSize || length%4 != 0 {
		return message{}, buf, false, fmt.Errorf("%w: invalid message length %d", ErrProtocol, length)
	}
	if uint64(len(buf)) < uint64(length) {
		return message{}, buf, false, nil
	}
	msg = message{
		object: binary.NativeEndian.Uint64(buf[0:8]),
		opcode: binary.NativeEndian.Uint32(buf[12:16]),
		body:   buf[headerSize:length],
	}
	return msg, buf[length:], true, nil
}

// decoder reads arguments from a message body. The first short read
// sticks in err and later reads return zero values.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("%w: truncated message", ErrProtocol)
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.NativeEndian.Uint32(b)
}

func (d *decoder) int32() int32 {
	return int32(d.uint32())
}

func (d *decoder) uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.NativeEndian.Uint64(b)
}

func (d *decoder) float32() float32 {
	return math.Float32frombits(d.uint32())
}

func (d *decoder) string() string {
	n := d.uint32()
	if d.err != nil || n == 0 {
		return ""
	}
	padded := (uint64(n) + 3) &^ 3
	if padded > uint64(len(d.buf)) {
		d.err = fmt.Errorf("%w: string length %d exceeds message", ErrProtocol, n)
		return ""
	}
	b := d.take(int(padded))
	if b == nil {
		return ""
	}
	return string(b[:n-1])
}
