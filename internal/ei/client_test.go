package ei

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const (
	testConnID = 0xff00000000000001
	testSeatID = 0xff00000000000002
	testDevID  = 0xff00000000000003
	testKbdID  = 0xff00000000000004
	testPingID = 0xff00000000000005
)

// fakeServer is the EIS end of a socketpair.
type fakeServer struct {
	t  *testing.T
	fd int
	in []byte
}

func newPair(t *testing.T) (*Conn, *fakeServer) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetsockoptTimeval(fds[1], unix.SOL_SOCKET, unix.SO_RCVTIMEO, &unix.Timeval{Sec: 2}))

	conn, err := newConn(fds[0])
	require.NoError(t, err)
	srv := &fakeServer{t: t, fd: fds[1]}
	t.Cleanup(func() {
		unix.Close(fds[1])
		conn.Close()
	})
	return conn, srv
}

func (s *fakeServer) send(object uint64, opcode uint32, e *encoder) {
	s.t.Helper()
	var body []byte
	if e != nil {
		body = e.buf
	}
	_, err := unix.Write(s.fd, appendMessage(nil, object, opcode, body))
	require.NoError(s.t, err)
}

func (s *fakeServer) sendFd(object uint64, opcode uint32, e *encoder, fd int) {
	s.t.Helper()
	err := unix.Sendmsg(s.fd, appendMessage(nil, object, opcode, e.buf), unix.UnixRights(fd), nil, 0)
	require.NoError(s.t, err)
}

func (s *fakeServer) read() message {
	s.t.Helper()
	for {
		msg, rest, ok, err := splitMessage(s.in)
		require.NoError(s.t, err)
		if ok {
			msg.body = append([]byte(nil), msg.body...)
			s.in = rest
			return msg
		}
		buf := make([]byte, 4096)
		n, err := unix.Read(s.fd, buf)
		require.NoError(s.t, err)
		require.NotZero(s.t, n, "client closed")
		s.in = append(s.in, buf[:n]...)
	}
}

func (s *fakeServer) handshake(serial uint32) {
	var e encoder
	s.send(0, evHandshakeVersion, e.uint32(1))
	e = encoder{}
	s.send(0, evHandshakeInterface, e.string(ifaceSeat).uint32(1))
	e = encoder{}
	s.send(0, evHandshakeConnection, e.uint32(serial).uint64(testConnID).uint32(1))
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func connectClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	conn, srv := newPair(t)
	srv.handshake(5)
	c, err := Handshake(testContext(t), conn, "eitype-test")
	require.NoError(t, err)
	return c, srv
}

func memfdWith(t *testing.T, content string) int {
	t.Helper()
	fd, err := unix.MemfdCreate("keymap", unix.MFD_CLOEXEC)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fd) })
	_, err = unix.Write(fd, []byte(content))
	require.NoError(t, err)
	return fd
}

func TestHandshake(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()

	assert.Equal(t, uint32(5), c.Serial())
	v, ok := c.InterfaceVersion(ifaceSeat)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), v)

	msg := srv.read()
	assert.Equal(t, uint32(reqHandshakeVersion), msg.opcode)
	d := decoder{buf: msg.body}
	assert.Equal(t, uint32(1), d.uint32())

	msg = srv.read()
	assert.Equal(t, uint32(reqHandshakeContext), msg.opcode)
	d = decoder{buf: msg.body}
	assert.Equal(t, uint32(ContextSender), d.uint32())

	msg = srv.read()
	assert.Equal(t, uint32(reqHandshakeName), msg.opcode)
	d = decoder{buf: msg.body}
	assert.Equal(t, "eitype-test", d.string())

	var announced []string
	for range supportedInterfaces {
		msg = srv.read()
		require.Equal(t, uint32(reqHandshakeInterface), msg.opcode)
		d = decoder{buf: msg.body}
		announced = append(announced, d.string())
	}
	assert.Contains(t, announced, ifaceKeyboard)
	assert.Contains(t, announced, ifacePingpong)

	msg = srv.read()
	assert.Equal(t, uint32(reqHandshakeFinish), msg.opcode)
}

func TestHandshakeUnexpectedMessage(t *testing.T) {
	conn, srv := newPair(t)
	var e encoder
	srv.send(0, evHandshakeConnection, e.uint32(1).uint64(testConnID).uint32(1))

	_, err := Handshake(testContext(t), conn, "eitype-test")
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestHandshakeContextCancelled(t *testing.T) {
	conn, _ := newPair(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Handshake(ctx, conn, "eitype-test")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func drainHandshake(srv *fakeServer) {
	for {
		if srv.read().opcode == reqHandshakeFinish {
			return
		}
	}
}

func TestKeyboardDiscoveryAndEmulation(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)
	ctx := testContext(t)

	var e encoder
	srv.send(testConnID, evConnectionSeat, e.uint64(testSeatID).uint32(1))
	e = encoder{}
	srv.send(testSeatID, evSeatName, e.string("default"))
	e = encoder{}
	srv.send(testSeatID, evSeatCapability, e.uint64(1<<4).string(ifaceKeyboard))
	srv.send(testSeatID, evSeatDone, nil)

	ev, err := c.NextEvent(ctx)
	require.NoError(t, err)
	added, ok := ev.(SeatAdded)
	require.True(t, ok, "got %T", ev)
	seat := added.Seat
	assert.Equal(t, "default", seat.Name())
	assert.True(t, seat.HasCapability(CapabilityKeyboard))
	assert.False(t, seat.HasCapability("ei_pointer"))

	seat.Bind(CapabilityKeyboard)
	require.NoError(t, c.Flush())
	msg := srv.read()
	assert.Equal(t, uint64(testSeatID), msg.object)
	assert.Equal(t, uint32(reqSeatBind), msg.opcode)
	d := decoder{buf: msg.body}
	assert.Equal(t, uint64(1<<4), d.uint64())

	const keymapText = "xkb_keymap { };"
	e = encoder{}
	srv.send(testSeatID, evSeatDevice, e.uint64(testDevID).uint32(1))
	e = encoder{}
	srv.send(testDevID, evDeviceName, e.string("virtual keyboard"))
	e = encoder{}
	srv.send(testDevID, evDeviceType, e.uint32(uint32(DeviceVirtual)))
	e = encoder{}
	srv.send(testDevID, evDeviceInterface, e.uint64(testKbdID).string(ifaceKeyboard).uint32(1))
	e = encoder{}
	srv.sendFd(testKbdID, evKeyboardKeymap, e.uint32(KeymapTypeXKB).uint32(uint32(len(keymapText)+1)),
		memfdWith(t, keymapText+"\x00"))
	srv.send(testDevID, evDeviceDone, nil)
	e = encoder{}
	srv.send(testDevID, evDeviceResumed, e.uint32(9))

	var dev *Device
	var sawKeymap bool
	for dev == nil || !dev.Resumed() {
		ev, err := c.NextEvent(ctx)
		require.NoError(t, err)
		switch ev := ev.(type) {
		case KeymapChanged:
			sawKeymap = true
		case DeviceAdded:
			dev = ev.Device
		case DeviceResumed:
			assert.Same(t, dev, ev.Device)
		}
	}
	assert.True(t, sawKeymap)
	assert.Equal(t, uint32(9), c.Serial())
	assert.Equal(t, "virtual keyboard", dev.Name())
	assert.Equal(t, DeviceVirtual, dev.Type())
	assert.Same(t, seat, dev.Seat())

	kb, ok := dev.Keyboard()
	require.True(t, ok)
	assert.Same(t, dev, kb.Device())
	km, ok := kb.Keymap()
	require.True(t, ok)
	text, err := km.Text()
	require.NoError(t, err)
	assert.Equal(t, keymapText, text)

	dev.StartEmulating(c.Serial(), 1)
	kb.Key(30, KeyPressed)
	dev.Frame(c.Serial(), 1234)
	require.NoError(t, c.Flush())

	msg = srv.read()
	assert.Equal(t, uint64(testDevID), msg.object)
	assert.Equal(t, uint32(reqDeviceStartEmulating), msg.opcode)
	d = decoder{buf: msg.body}
	assert.Equal(t, uint32(9), d.uint32())
	assert.Equal(t, uint32(1), d.uint32())

	msg = srv.read()
	assert.Equal(t, uint64(testKbdID), msg.object)
	assert.Equal(t, uint32(reqKeyboardKey), msg.opcode)
	d = decoder{buf: msg.body}
	assert.Equal(t, uint32(30), d.uint32())
	assert.Equal(t, uint32(KeyPressed), d.uint32())

	msg = srv.read()
	assert.Equal(t, uint32(reqDeviceFrame), msg.opcode)
	d = decoder{buf: msg.body}
	assert.Equal(t, uint32(9), d.uint32())
	assert.Equal(t, uint64(1234), d.uint64())

	e = encoder{}
	srv.send(testDevID, evDevicePaused, e.uint32(10))
	ev, err = c.NextEvent(ctx)
	require.NoError(t, err)
	assert.IsType(t, DevicePaused{}, ev)
	assert.False(t, dev.Resumed())

	e = encoder{}
	srv.send(testDevID, evDeviceDestroyed, e.uint32(11))
	ev, err = c.NextEvent(ctx)
	require.NoError(t, err)
	assert.IsType(t, DeviceRemoved{}, ev)
	_, ok = dev.Keyboard()
	assert.True(t, ok, "keyboard pointer survives removal")
	_, ok = kb.Keymap()
	assert.False(t, ok, "keymap released with device")
}

func TestPingIsAnswered(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)

	var e encoder
	srv.send(testConnID, evConnectionPing, e.uint64(testPingID).uint32(1))
	require.NoError(t, c.drain())
	assert.Zero(t, c.conn.Pending())

	msg := srv.read()
	assert.Equal(t, uint64(testPingID), msg.object)
	assert.Equal(t, uint32(reqPingpongDone), msg.opcode)
}

func TestPingAnsweredWhileOutputBlocked(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)
	require.NoError(t, unix.SetsockoptInt(c.conn.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 4096))

	payload := make([]byte, 1024)
	for i := 0; i < 512; i++ {
		c.conn.send(testDevID, reqDeviceFrame, payload)
	}
	var e encoder
	srv.send(testConnID, evConnectionPing, e.uint64(testPingID).uint32(1))

	err := c.Flush()
	require.Error(t, err)
	assert.True(t, IsWouldBlock(err))

	answered := false
	for i := 0; i < 2048 && !answered; i++ {
		msg := srv.read()
		answered = msg.object == testPingID && msg.opcode == reqPingpongDone
		if err := c.conn.Flush(); err != nil {
			require.True(t, IsWouldBlock(err), "unexpected flush error: %v", err)
		}
	}
	assert.True(t, answered, "ping reply queued behind blocked output")
}

func TestMalformedDisconnectIsProtocolError(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)

	var e encoder
	e.uint32(5).uint32(uint32(DisconnectError)).uint32(0xFFFFFFFD)
	e.buf = append(e.buf, 'x', 0, 0, 0)

	var err error
	require.NotPanics(t, func() {
		err = c.dispatch(message{object: testConnID, opcode: evConnectionDisconnected, body: e.buf})
	})
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Empty(t, c.pending)
	assert.False(t, c.disconnected)
}

func TestDeviceInterfaceWithUntrackedName(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)
	const bogusID = 0xff00000000000006

	steps := []struct {
		object uint64
		opcode uint32
		e      *encoder
	}{
		{testConnID, evConnectionSeat, new(encoder).uint64(testSeatID).uint32(1)},
		{testSeatID, evSeatDevice, new(encoder).uint64(testDevID).uint32(1)},
		{testDevID, evDeviceInterface, new(encoder).uint64(bogusID).string(ifaceSeat).uint32(1)},
		{bogusID, evSeatName, new(encoder).string("impostor")},
		{bogusID, evSeatDone, new(encoder)},
		{testDevID, evDeviceInterface, new(encoder).uint64(bogusID + 1).string(ifaceDevice).uint32(1)},
		{bogusID + 1, evDeviceResumed, new(encoder).uint32(3)},
	}
	for _, st := range steps {
		require.NotPanics(t, func() {
			require.NoError(t, c.dispatch(message{object: st.object, opcode: st.opcode, body: st.e.buf}))
		})
	}

	_, tracked := c.objects[bogusID]
	assert.False(t, tracked)
	_, tracked = c.objects[bogusID+1]
	assert.False(t, tracked)
	assert.Empty(t, c.pending)
}

func TestDisconnectedEvent(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	drainHandshake(srv)
	ctx := testContext(t)

	var e encoder
	srv.send(testConnID, evConnectionDisconnected, e.uint32(5).uint32(uint32(DisconnectError)).string("bye"))

	ev, err := c.NextEvent(ctx)
	require.NoError(t, err)
	dis, ok := ev.(Disconnected)
	require.True(t, ok)
	assert.Equal(t, DisconnectError, dis.Reason)
	assert.ErrorIs(t, dis.Err(), ErrClosed)
	assert.Contains(t, dis.Err().Error(), "bye")

	_, err = c.NextEvent(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClientDisconnect(t *testing.T) {
	c, srv := connectClient(t)
	drainHandshake(srv)

	c.Disconnect()
	c.Disconnect()
	require.NoError(t, c.Flush())
	msg := srv.read()
	assert.Equal(t, uint64(testConnID), msg.object)
	assert.Equal(t, uint32(reqConnectionDisconnect), msg.opcode)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestPeerClosed(t *testing.T) {
	c, srv := connectClient(t)
	defer c.Close()
	unix.Shutdown(srv.fd, unix.SHUT_WR)

	_, err := c.NextEvent(testContext(t))
	assert.ErrorIs(t, err, ErrClosed)
}
