package ei

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	// ErrProtocol indicates a malformed or unexpected message.
	ErrProtocol = errors.New("ei: protocol error")

	// ErrClosed indicates the peer closed the connection.
	ErrClosed = errors.New("ei: connection closed")

	// ErrNoSocket indicates no EIS socket path could be determined.
	ErrNoSocket = errors.New("ei: no socket path provided and LIBEI_SOCKET not set")

	// ErrUnsupportedVersion indicates the server offered no usable handshake version.
	ErrUnsupportedVersion = errors.New("ei: unsupported handshake version")
)

// IsWouldBlock reports whether err is the transient "buffer full"
// condition of a non-blocking socket.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
