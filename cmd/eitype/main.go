// eitype types text on Wayland through the Emulated Input (EI) protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"golang.org/x/term"

	"eitype/internal/config"
	"eitype/internal/ei"
	"eitype/internal/layoutdetect"
	"eitype/internal/logging"
	"eitype/internal/portal"
	"eitype/internal/script"
	"eitype/internal/typer"
)

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, usageText)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s\n", err, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *cliOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(cfg, opts.verbose); err != nil {
		return err
	}
	logger := slog.Default().With("component", "main")

	var sc *script.Script
	if opts.scriptPath != "" {
		sc, err = script.Load(opts.scriptPath)
		if err != nil {
			return err
		}
		logger.Info("loaded script", "path", opts.scriptPath, "actions", len(sc.Actions))
	}

	actions, err := opts.buildActions(sc, os.Stdin, term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		return err
	}

	// The session bus serves the portal and KDE layout detection. It is
	// optional for socket connections.
	bus, busErr := dbus.SessionBus()
	if busErr != nil {
		bus = nil
		logger.Debug("session bus unavailable", "error", busErr)
	}

	var (
		conn          *ei.Conn
		portalSession *portal.Session
	)
	if cfg.Connection.Portal {
		if bus == nil {
			return fmt.Errorf("%w: portal needs the session bus: %w", typer.ErrConnection, busErr)
		}
		conn, portalSession, err = connectPortal(ctx, bus, cfg.Connection.RestoreToken)
	} else {
		conn, err = connectSocket(ctx, cfg, logger)
	}
	if err != nil {
		return err
	}
	if portalSession != nil {
		defer portalSession.Close()
	}

	sessionOpts := typer.Options{
		Keymap:        cfg.RuleNames(),
		LayoutIndex:   cfg.LayoutIndex,
		DetectLayout:  layoutdetect.New(bus).Detect,
		Delay:         opts.delay(cfg, sc),
		DeviceTimeout: cfg.DeviceTimeout(),
	}
	session, err := typer.Open(ctx, conn, sessionOpts)
	if err != nil {
		return err
	}
	defer session.Close()

	execErr := session.Execute(actions)
	closeErr := session.Close()
	if execErr != nil {
		return execErr
	}
	if closeErr != nil {
		return fmt.Errorf("close session: %w", closeErr)
	}
	logger.Info("done", "actions", len(actions))
	return nil
}

func setupLogging(cfg *config.Config, verbose int) error {
	lc := logging.DefaultConfig()

	if verbose > 0 {
		lc.Level = logging.LevelFromVerbosity(verbose)
	} else {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return err
		}
		lc.Level = level
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	lc.Format = format
	lc.Component = ""

	l, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	logging.SetDefault(l)
	return nil
}

func connectSocket(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ei.Conn, error) {
	path, err := ei.SocketPath(cfg.Connection.Socket)
	if err != nil {
		return nil, fmt.Errorf("%w: %w (use -portal or -socket)", typer.ErrConnection, err)
	}

	if wait := cfg.SocketWait(); wait > 0 {
		wctx, cancel := context.WithTimeout(ctx, wait)
		err := ei.WaitForSocket(wctx, path)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", typer.ErrConnection, err)
		}
	}

	logger.Info("connecting to socket", "path", path)
	conn, err := ei.Dial(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", typer.ErrConnection, err)
	}
	return conn, nil
}

func connectPortal(ctx context.Context, bus *dbus.Conn, restoreToken string) (*ei.Conn, *portal.Session, error) {
	f, ps, issued, err := portal.Connect(ctx, bus, restoreToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", typer.ErrConnection, err)
	}
	defer f.Close()

	if issued != "" && issued != restoreToken {
		printRestoreToken(os.Stderr, issued)
	}

	conn, err := ei.FromFile(f)
	if err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("%w: %w", typer.ErrConnection, err)
	}
	return conn, ps, nil
}

// printRestoreToken reports a newly issued token. Logs redact it, so it
// goes straight to w.
func printRestoreToken(w io.Writer, token string) {
	fmt.Fprintf(w, "eitype: portal restore token: %s\n", token)
}
