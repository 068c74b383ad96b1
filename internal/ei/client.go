package ei

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Client is a connected EI sender context.
//
// A Client is not safe for concurrent use.
type Client struct {
	conn   *Conn
	logger *slog.Logger

	serial       uint32
	connectionID uint64
	versions     map[string]uint32
	objects      map[uint64]string

	seats     map[uint64]*Seat
	devices   map[uint64]*Device
	keyboards map[uint64]*Keyboard

	pending      []Event
	disconnected bool
}

// Handshake performs the EI handshake on conn as a sender named name.
// On success the client owns conn.
func Handshake(ctx context.Context, conn *Conn, name string) (*Client, error) {
	c := &Client{
		conn:      conn,
		logger:    slog.Default().With("component", "ei"),
		versions:  make(map[string]uint32),
		objects:   map[uint64]string{0: ifaceHandshake},
		seats:     make(map[uint64]*Seat),
		devices:   make(map[uint64]*Device),
		keyboards: make(map[uint64]*Keyboard),
	}

	msg, err := c.readMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("ei: waiting for handshake: %w", err)
	}
	if msg.object != 0 || msg.opcode != evHandshakeVersion {
		return nil, fmt.Errorf("%w: expected handshake_version, got object %d opcode %d",
			ErrProtocol, msg.object, msg.opcode)
	}
	d := decoder{buf: msg.body}
	offered := d.uint32()
	if d.err != nil {
		return nil, d.err
	}
	if offered < handshakeVersion {
		return nil, fmt.Errorf("%w: server offered %d", ErrUnsupportedVersion, offered)
	}

	var e encoder
	c.conn.send(0, reqHandshakeVersion, e.uint32(handshakeVersion).buf)
	e = encoder{}
	c.conn.send(0, reqHandshakeContext, e.uint32(uint32(ContextSender)).buf)
	e = encoder{}
	c.conn.send(0, reqHandshakeName, e.string(name).buf)
	for _, iface := range supportedInterfaces {
		e = encoder{}
		c.conn.send(0, reqHandshakeInterface, e.string(iface.name).uint32(iface.version).buf)
	}
	c.conn.send(0, reqHandshakeFinish, nil)
	if err := c.conn.FlushContext(ctx); err != nil {
		return nil, fmt.Errorf("ei: sending handshake: %w", err)
	}

	for c.connectionID == 0 {
		msg, err := c.readMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ei: waiting for connection: %w", err)
		}
		if msg.object != 0 {
			return nil, fmt.Errorf("%w: message for object %d before connection", ErrProtocol, msg.object)
		}
		if err := c.handleHandshake(msg); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("handshake complete", "connection", c.connectionID, "serial", c.serial)
	return c, nil
}

func (c *Client) handleHandshake(msg message) error {
	d := decoder{buf: msg.body}
	switch msg.opcode {
	case evHandshakeVersion:
	case evHandshakeInterface:
		name := d.string()
		version := d.uint32()
		if d.err == nil {
			c.versions[name] = version
		}
	case evHandshakeConnection:
		serial := d.uint32()
		id := d.uint64()
		d.uint32()
		if d.err != nil {
			return d.err
		}
		if id == 0 {
			return fmt.Errorf("%w: connection object id 0", ErrProtocol)
		}
		c.serial = serial
		c.connectionID = id
		c.objects[id] = ifaceConnection
	default:
		return fmt.Errorf("%w: unknown handshake event %d", ErrProtocol, msg.opcode)
	}
	return d.err
}

// Serial returns the most recent serial received from the server.
func (c *Client) Serial() uint32 {
	return c.serial
}

// InterfaceVersion returns the version the server agreed to for iface.
func (c *Client) InterfaceVersion(iface string) (uint32, bool) {
	v, ok := c.versions[iface]
	return v, ok
}

// Flush writes queued requests without blocking. While the socket is
// full, readable input is dispatched so pings are still answered.
func (c *Client) Flush() error {
	err := c.conn.Flush()
	if IsWouldBlock(err) {
		if derr := c.drain(); derr != nil {
			return derr
		}
	}
	return err
}

// NextEvent returns the next event, reading from the socket as needed.
func (c *Client) NextEvent(ctx context.Context) (Event, error) {
	for len(c.pending) == 0 {
		if c.disconnected {
			return nil, ErrClosed
		}
		msg, err := c.readMessage(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.dispatch(msg); err != nil {
			return nil, err
		}
	}
	ev := c.pending[0]
	c.pending = c.pending[1:]
	return ev, nil
}

// drain processes every message already buffered or immediately
// readable, without waiting.
func (c *Client) drain() error {
	if err := c.conn.fill(0); err != nil {
		return err
	}
	for {
		msg, ok, err := c.conn.next()
		if err != nil || !ok {
			return err
		}
		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
}

func (c *Client) readMessage(ctx context.Context) (message, error) {
	for {
		msg, ok, err := c.conn.next()
		if err != nil {
			return message{}, err
		}
		if ok {
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return message{}, err
		}
		wait := pollTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < wait {
				wait = max(left, time.Millisecond)
			}
		}
		if err := c.conn.fill(wait); err != nil {
			return message{}, err
		}
	}
}

func (c *Client) dispatch(msg message) error {
	iface, ok := c.objects[msg.object]
	if !ok {
		c.logger.Debug("message for unknown object", "object", msg.object, "opcode", msg.opcode)
		return nil
	}
	d := &decoder{buf: msg.body}
	switch iface {
	case ifaceHandshake:
		return c.handleHandshake(msg)
	case ifaceConnection:
		c.handleConnection(msg, d)
	case ifaceSeat:
		c.handleSeat(msg, d)
	case ifaceDevice:
		c.handleDevice(msg, d)
	case ifaceKeyboard:
		c.handleKeyboard(msg, d)
	default:
		// ei_callback.done and similar carry nothing a sender needs.
	}
	return d.err
}

func (c *Client) handleConnection(msg message, d *decoder) {
	switch msg.opcode {
	case evConnectionDisconnected:
		d.uint32()
		reason := DisconnectReason(d.uint32())
		explanation := d.string()
		if d.err != nil {
			return
		}
		c.disconnected = true
		c.pending = append(c.pending, Disconnected{Reason: reason, Explanation: explanation})
	case evConnectionSeat:
		id := d.uint64()
		d.uint32()
		if d.err != nil {
			return
		}
		c.objects[id] = ifaceSeat
		c.seats[id] = &Seat{c: c, id: id, caps: make(map[string]uint64)}
	case evConnectionInvalidObject:
		serial := d.uint32()
		id := d.uint64()
		c.serial = serial
		c.logger.Warn("server reported invalid object", "object", id)
	case evConnectionPing:
		id := d.uint64()
		d.uint32()
		if d.err != nil {
			return
		}
		var e encoder
		c.conn.send(id, reqPingpongDone, e.uint64(0).buf)
		if err := c.conn.Flush(); err != nil && !IsWouldBlock(err) {
			c.logger.Warn("ping reply failed", "error", err)
		}
	}
}

func (c *Client) handleSeat(msg message, d *decoder) {
	seat, ok := c.seats[msg.object]
	if !ok {
		return
	}
	switch msg.opcode {
	case evSeatDestroyed:
		c.serial = d.uint32()
		seat.removed = true
		c.forget(msg.object)
		delete(c.seats, msg.object)
		c.pending = append(c.pending, SeatRemoved{Seat: seat})
	case evSeatName:
		seat.name = d.string()
	case evSeatCapability:
		mask := d.uint64()
		name := d.string()
		if d.err == nil {
			seat.caps[name] = mask
		}
	case evSeatDone:
		seat.done = true
		c.pending = append(c.pending, SeatAdded{Seat: seat})
	case evSeatDevice:
		id := d.uint64()
		d.uint32()
		if d.err != nil {
			return
		}
		c.objects[id] = ifaceDevice
		c.devices[id] = &Device{c: c, id: id, seat: seat}
	}
}

func (c *Client) handleDevice(msg message, d *decoder) {
	dev, ok := c.devices[msg.object]
	if !ok {
		return
	}
	switch msg.opcode {
	case evDeviceDestroyed:
		c.serial = d.uint32()
		dev.removed = true
		dev.resumed = false
		if dev.keyboard != nil {
			c.dropKeyboard(dev.keyboard)
		}
		c.forget(msg.object)
		delete(c.devices, msg.object)
		c.pending = append(c.pending, DeviceRemoved{Device: dev})
	case evDeviceName:
		dev.name = d.string()
	case evDeviceType:
		dev.typ = DeviceType(d.uint32())
	case evDeviceDimensions, evDeviceRegion:
	case evDeviceInterface:
		id := d.uint64()
		name := d.string()
		d.uint32()
		if d.err != nil {
			return
		}
		// Other interfaces (pointer, touch, ...) stay unregistered and
		// their events are dropped as unknown.
		if name == ifaceKeyboard {
			kb := &Keyboard{c: c, id: id, device: dev}
			dev.keyboard = kb
			c.objects[id] = ifaceKeyboard
			c.keyboards[id] = kb
		}
	case evDeviceDone:
		dev.done = true
		c.pending = append(c.pending, DeviceAdded{Device: dev})
	case evDeviceResumed:
		c.serial = d.uint32()
		dev.resumed = true
		c.pending = append(c.pending, DeviceResumed{Device: dev})
	case evDevicePaused:
		c.serial = d.uint32()
		dev.resumed = false
		c.pending = append(c.pending, DevicePaused{Device: dev})
	}
}

func (c *Client) handleKeyboard(msg message, d *decoder) {
	kb, ok := c.keyboards[msg.object]
	if !ok {
		return
	}
	switch msg.opcode {
	case evKeyboardDestroyed:
		c.serial = d.uint32()
		if kb.device != nil {
			kb.device.keyboard = nil
		}
		c.dropKeyboard(kb)
	case evKeyboardKeymap:
		typ := d.uint32()
		size := d.uint32()
		if d.err != nil {
			return
		}
		fd, ok := c.conn.takeFd()
		if !ok {
			d.err = fmt.Errorf("%w: keymap event without file descriptor", ErrProtocol)
			return
		}
		if kb.keymap != nil {
			kb.keymap.Close()
		}
		kb.keymap = newKeymap(typ, size, fd)
		c.pending = append(c.pending, KeymapChanged{Keyboard: kb})
	case evKeyboardKey:
	case evKeyboardModifiers:
		c.serial = d.uint32()
	}
}

func (c *Client) dropKeyboard(kb *Keyboard) {
	if kb.keymap != nil {
		kb.keymap.Close()
		kb.keymap = nil
	}
	c.forget(kb.id)
	delete(c.keyboards, kb.id)
}

func (c *Client) forget(id uint64) {
	delete(c.objects, id)
}

// Disconnect queues a disconnect request. It does not flush.
func (c *Client) Disconnect() {
	if c.disconnected || c.connectionID == 0 {
		return
	}
	c.disconnected = true
	c.conn.send(c.connectionID, reqConnectionDisconnect, nil)
}

// Close releases keymaps and closes the socket.
func (c *Client) Close() error {
	for _, kb := range c.keyboards {
		if kb.keymap != nil {
			kb.keymap.Close()
			kb.keymap = nil
		}
	}
	return c.conn.Close()
}
