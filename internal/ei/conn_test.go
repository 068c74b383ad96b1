package ei

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFlushWouldBlockKeepsRemainder(t *testing.T) {
	conn, srv := newPair(t)
	require.NoError(t, unix.SetsockoptInt(conn.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	payload := make([]byte, 1024)
	for i := 0; i < 1024; i++ {
		conn.send(1, 1, payload)
	}
	total := conn.Pending()

	err := conn.Flush()
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))
	assert.Greater(t, conn.Pending(), 0)
	assert.Less(t, conn.Pending(), total)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64*1024)
		read := 0
		for read < total {
			n, err := unix.Read(srv.fd, buf)
			if err != nil || n == 0 {
				return
			}
			read += n
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.FlushContext(ctx))
	assert.Zero(t, conn.Pending())
	<-done
}

func TestIsWouldBlock(t *testing.T) {
	assert.True(t, IsWouldBlock(unix.EAGAIN))
	assert.True(t, IsWouldBlock(unix.EWOULDBLOCK))
	assert.False(t, IsWouldBlock(unix.EPIPE))
	assert.False(t, IsWouldBlock(nil))
}

func TestFromFile(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	f := os.NewFile(uintptr(fds[0]), "eis")
	conn, err := FromFile(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	defer conn.Close()

	conn.send(3, 2, nil)
	require.NoError(t, conn.Flush())

	buf := make([]byte, 64)
	n, err := unix.Read(fds[1], buf)
	require.NoError(t, err)
	assert.Equal(t, headerSize, n)
}

func TestDial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eis-0")
	lfd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(lfd)
	require.NoError(t, unix.Bind(lfd, &unix.SockaddrUnix{Name: path}))
	require.NoError(t, unix.Listen(lfd, 1))

	conn, err := Dial(path)
	require.NoError(t, err)
	assert.NoError(t, conn.Close())

	_, err = Dial(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestKeymapText(t *testing.T) {
	const text = "xkb_keymap {\n};\n"
	fd := memfdWith(t, text+"\x00\x00")
	dup, err := unix.Dup(fd)
	require.NoError(t, err)

	km := newKeymap(KeymapTypeXKB, uint32(len(text)+2), dup)
	got, err := km.Text()
	require.NoError(t, err)
	assert.Equal(t, text, got)

	require.NoError(t, km.Close())
	require.NoError(t, km.Close())
	_, err = km.Text()
	assert.Error(t, err)
}

func TestKeymapTextRejectsUnknownType(t *testing.T) {
	dup, err := unix.Dup(memfdWith(t, "x"))
	require.NoError(t, err)
	km := newKeymap(7, 1, dup)
	defer km.Close()

	_, err = km.Text()
	assert.Error(t, err)
}
