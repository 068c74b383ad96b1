package ei

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// SocketPath resolves the EIS socket. An explicit path wins; otherwise
// $LIBEI_SOCKET is used, joined with $XDG_RUNTIME_DIR when relative.
func SocketPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	name := os.Getenv("LIBEI_SOCKET")
	if name == "" {
		return "", ErrNoSocket
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", fmt.Errorf("%w: LIBEI_SOCKET is relative and XDG_RUNTIME_DIR is not set", ErrNoSocket)
	}
	return filepath.Join(runtimeDir, name), nil
}

// WaitForSocket blocks until path exists or ctx is done.
func WaitForSocket(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ei: create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("ei: watch %s: %w", dir, err)
	}

	// The socket may have appeared between the first stat and Add.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ei: waiting for %s: %w", path, ctx.Err())
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("ei: watcher closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("ei: watcher closed")
			}
			return fmt.Errorf("ei: watch %s: %w", dir, err)
		}
	}
}
