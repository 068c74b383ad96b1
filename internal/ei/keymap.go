package ei

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Keymap is a keymap blob shared by the server as a file descriptor.
type Keymap struct {
	Type uint32
	Size uint32
	file *os.File
}

func newKeymap(typ, size uint32, fd int) *Keymap {
	return &Keymap{
		Type: typ,
		Size: size,
		file: os.NewFile(uintptr(fd), "ei-keymap"),
	}
}

// Text maps the blob and returns it as a string with any trailing NUL
// bytes removed.
func (k *Keymap) Text() (string, error) {
	if k.file == nil {
		return "", fmt.Errorf("ei: keymap already closed")
	}
	if k.Type != KeymapTypeXKB {
		return "", fmt.Errorf("ei: unsupported keymap type %d", k.Type)
	}
	if k.Size == 0 {
		return "", fmt.Errorf("ei: empty keymap")
	}
	data, err := unix.Mmap(int(k.file.Fd()), 0, int(k.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return "", fmt.Errorf("ei: mmap keymap: %w", err)
	}
	defer unix.Munmap(data)

	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return string(data[:end]), nil
}

// Close releases the descriptor.
func (k *Keymap) Close() error {
	if k.file == nil {
		return nil
	}
	err := k.file.Close()
	k.file = nil
	return err
}
