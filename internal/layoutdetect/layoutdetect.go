// Package layoutdetect finds the keyboard layout index the desktop
// currently has active.
package layoutdetect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ErrNotDetected indicates a source could not report a layout index.
var ErrNotDetected = errors.New("layoutdetect: layout not detected")

// Source reports the active layout index for one desktop environment.
type Source struct {
	Name   string
	Detect func(ctx context.Context) (uint32, error)
}

// Detector tries sources in order; the first success wins.
type Detector struct {
	sources []Source
	logger  *slog.Logger
}

// New returns a detector querying GNOME, then KDE on bus. bus may be nil,
// in which case KDE is skipped.
func New(bus *dbus.Conn) *Detector {
	sources := []Source{{Name: "gnome", Detect: GNOME(runCommand)}}
	if bus != nil {
		sources = append(sources, Source{Name: "kde", Detect: KDE(bus)})
	}
	return NewWithSources(sources...)
}

// NewWithSources returns a detector over the given sources.
func NewWithSources(sources ...Source) *Detector {
	return &Detector{
		sources: sources,
		logger:  slog.Default().With("component", "layoutdetect"),
	}
}

// Detect returns the first index any source reports.
func (d *Detector) Detect(ctx context.Context) (uint32, bool) {
	for _, src := range d.sources {
		idx, err := src.Detect(ctx)
		if err != nil {
			d.logger.Debug("layout detection failed", "source", src.Name, "error", err)
			continue
		}
		d.logger.Info("auto-detected active layout index", "source", src.Name, "index", idx)
		return idx, true
	}
	return 0, false
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// GNOME reads org.gnome.desktop.input-sources current via gsettings.
func GNOME(run Runner) func(context.Context) (uint32, error) {
	return func(ctx context.Context) (uint32, error) {
		out, err := run(ctx, "gsettings", "get", "org.gnome.desktop.input-sources", "current")
		if err != nil {
			return 0, err
		}
		return ParseGSettingsUint32(string(out))
	}
}

// ParseGSettingsUint32 parses gsettings output such as "uint32 1".
func ParseGSettingsUint32(out string) (uint32, error) {
	out = strings.TrimSpace(out)
	if i := strings.LastIndexByte(out, ' '); i >= 0 {
		out = out[i+1:]
	}
	n, err := strconv.ParseUint(out, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected gsettings output %q", ErrNotDetected, out)
	}
	return uint32(n), nil
}

// KDE asks the Plasma keyboard daemon for the current layout.
func KDE(bus *dbus.Conn) func(context.Context) (uint32, error) {
	return func(ctx context.Context) (uint32, error) {
		var idx uint32
		obj := bus.Object("org.kde.keyboard", "/Layouts")
		if err := obj.CallWithContext(ctx, "org.kde.KeyboardLayouts.getLayout", 0).Store(&idx); err != nil {
			return 0, fmt.Errorf("kde getLayout: %w", err)
		}
		return idx, nil
	}
}
