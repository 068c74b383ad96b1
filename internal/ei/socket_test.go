package ei

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPath(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv("LIBEI_SOCKET", "eis-0")
		got, err := SocketPath("/tmp/custom")
		require.NoError(t, err)
		assert.Equal(t, "/tmp/custom", got)
	})

	t.Run("absolute env", func(t *testing.T) {
		t.Setenv("LIBEI_SOCKET", "/run/eis")
		got, err := SocketPath("")
		require.NoError(t, err)
		assert.Equal(t, "/run/eis", got)
	})

	t.Run("relative env joins runtime dir", func(t *testing.T) {
		t.Setenv("LIBEI_SOCKET", "eis-0")
		t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
		got, err := SocketPath("")
		require.NoError(t, err)
		assert.Equal(t, "/run/user/1000/eis-0", got)
	})

	t.Run("relative env without runtime dir", func(t *testing.T) {
		t.Setenv("LIBEI_SOCKET", "eis-0")
		t.Setenv("XDG_RUNTIME_DIR", "")
		_, err := SocketPath("")
		assert.ErrorIs(t, err, ErrNoSocket)
	})

	t.Run("nothing set", func(t *testing.T) {
		t.Setenv("LIBEI_SOCKET", "")
		_, err := SocketPath("")
		assert.ErrorIs(t, err, ErrNoSocket)
	})
}

func TestWaitForSocketExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eis-0")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.NoError(t, WaitForSocket(context.Background(), path))
}

func TestWaitForSocketCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eis-0")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, nil, 0o600)
	}()

	assert.NoError(t, WaitForSocket(ctx, path))
}

func TestWaitForSocketTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eis-0")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WaitForSocket(ctx, path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
