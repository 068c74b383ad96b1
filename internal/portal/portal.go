// Package portal obtains an EIS connection through the XDG RemoteDesktop
// portal.
//
// Every portal request returns a Request object handle and reports its
// outcome through a Response signal on that object. The caller owns the
// D-Bus connection; nothing here keeps global state.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest         = "org.freedesktop.portal.Desktop"
	portalPath         = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	remoteDesktopIface = "org.freedesktop.portal.RemoteDesktop"
	requestIface       = "org.freedesktop.portal.Request"
	sessionIface       = "org.freedesktop.portal.Session"
)

// DeviceType is the RemoteDesktop device type bitmask.
type DeviceType uint32

const (
	DeviceKeyboard    DeviceType = 1
	DevicePointer     DeviceType = 2
	DeviceTouchscreen DeviceType = 4
)

// PersistMode controls whether the portal issues a restore token.
type PersistMode uint32

const (
	PersistNone              PersistMode = 0
	PersistTransient         PersistMode = 1
	PersistExplicitlyRevoked PersistMode = 2
)

var (
	// ErrCancelled indicates the user dismissed the authorization dialog.
	ErrCancelled = errors.New("portal: request cancelled by user")

	// ErrFailed indicates the portal ended the request for another reason.
	ErrFailed = errors.New("portal: request failed")

	// ErrBadResponse indicates a malformed Response signal or reply.
	ErrBadResponse = errors.New("portal: unexpected response")
)

var tokenCounter atomic.Uint64

func newToken() string {
	return fmt.Sprintf("eitype%d_%d", os.Getpid(), tokenCounter.Add(1))
}

// requestPath predicts the Request object path for a handle token.
func requestPath(uniqueName, token string) dbus.ObjectPath {
	sender := strings.ReplaceAll(strings.TrimPrefix(uniqueName, ":"), ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + sender + "/" + token)
}

// parseResponse decodes the body of a Request.Response signal.
func parseResponse(body []any) (map[string]dbus.Variant, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("%w: %d arguments", ErrBadResponse, len(body))
	}
	code, ok := body[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("%w: response code is %T", ErrBadResponse, body[0])
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: results are %T", ErrBadResponse, body[1])
	}
	switch code {
	case 0:
		return results, nil
	case 1:
		return nil, ErrCancelled
	default:
		return nil, fmt.Errorf("%w: response code %d", ErrFailed, code)
	}
}

// Portal is a RemoteDesktop portal client.
type Portal struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// New returns a client using conn, which must be a session bus connection.
func New(conn *dbus.Conn) *Portal {
	return &Portal{
		conn:   conn,
		obj:    conn.Object(portalDest, portalPath),
		logger: slog.Default().With("component", "portal"),
	}
}

// request calls a RemoteDesktop method that returns a Request handle and
// waits for its Response.
func (p *Portal) request(ctx context.Context, method, token string, args ...any) (map[string]dbus.Variant, error) {
	names := p.conn.Names()
	if len(names) == 0 {
		return nil, fmt.Errorf("portal: connection has no unique name")
	}
	expected := requestPath(names[0], token)

	match := []dbus.MatchOption{
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	}
	if err := p.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, fmt.Errorf("portal: add signal match: %w", err)
	}
	defer p.conn.RemoveMatchSignalContext(context.Background(), match...)

	signals := make(chan *dbus.Signal, 8)
	p.conn.Signal(signals)
	defer p.conn.RemoveSignal(signals)

	var handle dbus.ObjectPath
	if err := p.obj.CallWithContext(ctx, remoteDesktopIface+"."+method, 0, args...).Store(&handle); err != nil {
		return nil, fmt.Errorf("portal: %s: %w", method, err)
	}
	if handle != expected {
		p.logger.Debug("request handle differs from predicted path", "handle", handle, "expected", expected)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("portal: %s: %w", method, ctx.Err())
		case sig, ok := <-signals:
			if !ok {
				return nil, fmt.Errorf("portal: %s: connection closed", method)
			}
			if sig.Name != requestIface+".Response" {
				continue
			}
			if sig.Path != handle && sig.Path != expected {
				continue
			}
			results, err := parseResponse(sig.Body)
			if err != nil {
				return nil, fmt.Errorf("portal: %s: %w", method, err)
			}
			return results, nil
		}
	}
}

// Session is a RemoteDesktop session.
type Session struct {
	p      *Portal
	handle dbus.ObjectPath
	closed bool
}

// Handle returns the session object path.
func (s *Session) Handle() dbus.ObjectPath { return s.handle }

// CreateSession creates a RemoteDesktop session.
func (p *Portal) CreateSession(ctx context.Context) (*Session, error) {
	token := newToken()
	opts := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(token),
		"session_handle_token": dbus.MakeVariant(newToken()),
	}
	results, err := p.request(ctx, "CreateSession", token, opts)
	if err != nil {
		return nil, err
	}

	v, ok := results["session_handle"]
	if !ok {
		return nil, fmt.Errorf("%w: no session_handle", ErrBadResponse)
	}
	var handle dbus.ObjectPath
	switch h := v.Value().(type) {
	case string:
		handle = dbus.ObjectPath(h)
	case dbus.ObjectPath:
		handle = h
	default:
		return nil, fmt.Errorf("%w: session_handle is %T", ErrBadResponse, h)
	}
	p.logger.Debug("session created", "handle", handle)
	return &Session{p: p, handle: handle}, nil
}

// SelectDevices chooses the device types to emulate. A non-empty
// restoreToken lets the portal skip the authorization dialog.
func (s *Session) SelectDevices(ctx context.Context, types DeviceType, persist PersistMode, restoreToken string) error {
	token := newToken()
	opts := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"types":        dbus.MakeVariant(uint32(types)),
		"persist_mode": dbus.MakeVariant(uint32(persist)),
	}
	if restoreToken != "" {
		opts["restore_token"] = dbus.MakeVariant(restoreToken)
	}
	_, err := s.p.request(ctx, "SelectDevices", token, s.handle, opts)
	return err
}

// Start starts the session, showing the authorization dialog if needed.
// It returns the restore token for the next session, if the portal
// issued one.
func (s *Session) Start(ctx context.Context) (string, error) {
	token := newToken()
	opts := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
	}
	results, err := s.p.request(ctx, "Start", token, s.handle, "", opts)
	if err != nil {
		return "", err
	}
	if v, ok := results["restore_token"]; ok {
		if t, ok := v.Value().(string); ok {
			s.p.logger.Debug("received new restore token")
			return t, nil
		}
	}
	return "", nil
}

// ConnectToEIS returns the EIS socket for the started session.
func (s *Session) ConnectToEIS(ctx context.Context) (*os.File, error) {
	var fd dbus.UnixFD
	err := s.p.obj.CallWithContext(ctx, remoteDesktopIface+".ConnectToEIS", 0,
		s.handle, map[string]dbus.Variant{}).Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("portal: ConnectToEIS: %w", err)
	}
	if fd < 0 {
		return nil, fmt.Errorf("%w: invalid file descriptor", ErrBadResponse)
	}
	return os.NewFile(uintptr(fd), "eis"), nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	obj := s.p.conn.Object(portalDest, s.handle)
	if err := obj.Call(sessionIface+".Close", 0).Err; err != nil {
		return fmt.Errorf("portal: close session: %w", err)
	}
	return nil
}

// Connect runs CreateSession, SelectDevices(keyboard), Start and
// ConnectToEIS. The returned session must be closed after the EIS
// connection is done.
func Connect(ctx context.Context, conn *dbus.Conn, restoreToken string) (*os.File, *Session, string, error) {
	p := New(conn)
	p.logger.Info("connecting via RemoteDesktop portal")
	if restoreToken != "" {
		p.logger.Info("using restore token for session persistence", "restore_token", restoreToken)
	}

	s, err := p.CreateSession(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	if err := s.SelectDevices(ctx, DeviceKeyboard, PersistExplicitlyRevoked, restoreToken); err != nil {
		s.Close()
		return nil, nil, "", err
	}
	issued, err := s.Start(ctx)
	if err != nil {
		s.Close()
		return nil, nil, "", err
	}
	f, err := s.ConnectToEIS(ctx)
	if err != nil {
		s.Close()
		return nil, nil, "", err
	}
	return f, s, issued, nil
}
