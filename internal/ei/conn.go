package ei

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	readChunk   = 4096
	maxRecvFds  = 32
	pollTimeout = 100 * time.Millisecond
)

// Conn is a non-blocking EI socket with buffered output and a queue of
// file descriptors received as ancillary data.
type Conn struct {
	fd     int
	out    []byte
	in     []byte
	fds    []int
	closed bool
}

// Dial connects to the EIS socket at path.
func Dial(path string) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("ei: socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ei: connect %s: %w", path, err)
	}
	return newConn(fd)
}

// FromFile wraps a connected socket, for example one handed out by the
// RemoteDesktop portal. The caller keeps ownership of f.
func FromFile(f *os.File) (*Conn, error) {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("ei: dup: %w", err)
	}
	unix.CloseOnExec(fd)
	return newConn(fd)
}

func newConn(fd int) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ei: set nonblocking: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Pending returns the number of queued bytes not yet written.
func (c *Conn) Pending() int {
	return len(c.out)
}

func (c *Conn) send(object uint64, opcode uint32, body []byte) {
	c.out = appendMessage(c.out, object, opcode, body)
}

// Flush writes queued output. When the socket buffer is full the
// remaining bytes stay queued and the returned error wraps EAGAIN.
func (c *Conn) Flush() error {
	if c.closed {
		return ErrClosed
	}
	for len(c.out) > 0 {
		n, err := unix.SendmsgN(c.fd, c.out, nil, nil, unix.MSG_NOSIGNAL)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("ei: flush: %w", err)
		}
		c.out = c.out[n:]
	}
	c.out = nil
	return nil
}

// FlushContext flushes, waiting for the socket to drain while ctx allows.
func (c *Conn) FlushContext(ctx context.Context) error {
	for {
		err := c.Flush()
		if err == nil || !IsWouldBlock(err) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := c.poll(unix.POLLOUT, pollTimeout); err != nil {
			return err
		}
	}
}

func (c *Conn) poll(events int16, timeout time.Duration) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(c.fd), Events: events}}
	n, err := unix.Poll(pfd, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("ei: poll: %w", err)
	}
	return n > 0, nil
}

// fill waits up to timeout for input and appends whatever arrives.
func (c *Conn) fill(timeout time.Duration) error {
	if c.closed {
		return ErrClosed
	}
	ready, err := c.poll(unix.POLLIN, timeout)
	if err != nil || !ready {
		return err
	}

	buf := make([]byte, readChunk)
	oob := make([]byte, unix.CmsgSpace(4*maxRecvFds))
	n, oobn, _, _, err := unix.Recvmsg(c.fd, buf, oob, unix.MSG_CMSG_CLOEXEC)
	if err != nil {
		if IsWouldBlock(err) || errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("ei: recvmsg: %w", err)
	}
	if oobn > 0 {
		if err := c.collectFds(oob[:oobn]); err != nil {
			return err
		}
	}
	if n == 0 {
		return ErrClosed
	}
	c.in = append(c.in, buf[:n]...)
	return nil
}

func (c *Conn) collectFds(oob []byte) error {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("ei: parse control message: %w", err)
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		c.fds = append(c.fds, fds...)
	}
	return nil
}

// next returns the next buffered message, if a complete one is present.
func (c *Conn) next() (message, bool, error) {
	msg, rest, ok, err := splitMessage(c.in)
	if err != nil || !ok {
		return message{}, false, err
	}
	// Copy the body out so later appends to c.in cannot alias it.
	msg.body = append([]byte(nil), msg.body...)
	c.in = rest
	if len(c.in) == 0 {
		c.in = nil
	}
	return msg, true, nil
}

// takeFd pops the oldest received descriptor.
func (c *Conn) takeFd() (int, bool) {
	if len(c.fds) == 0 {
		return -1, false
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, true
}

// Close closes the socket and any unclaimed descriptors. It is safe to
// call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, fd := range c.fds {
		unix.Close(fd)
	}
	c.fds = nil
	return unix.Close(c.fd)
}
