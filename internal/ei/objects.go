package ei

// Seat groups devices and advertises the capabilities a client may bind.
type Seat struct {
	c       *Client
	id      uint64
	name    string
	caps    map[string]uint64
	done    bool
	removed bool
}

// Name returns the seat name, if the server sent one.
func (s *Seat) Name() string { return s.name }

// HasCapability reports whether the seat offers the given interface.
func (s *Seat) HasCapability(iface string) bool {
	_, ok := s.caps[iface]
	return ok
}

// Bind requests devices for the given capability interfaces.
// Unknown capabilities are ignored.
func (s *Seat) Bind(ifaces ...string) {
	var mask uint64
	for _, name := range ifaces {
		mask |= s.caps[name]
	}
	var e encoder
	e.uint64(mask)
	s.c.conn.send(s.id, reqSeatBind, e.buf)
}

// DeviceType is the type reported by ei_device.device_type.
type DeviceType uint32

const (
	DeviceVirtual  DeviceType = 1
	DevicePhysical DeviceType = 2
)

// Device is a logical input device inside a seat.
type Device struct {
	c        *Client
	id       uint64
	seat     *Seat
	name     string
	typ      DeviceType
	keyboard *Keyboard
	done     bool
	resumed  bool
	removed  bool
}

// Name returns the device name, if the server sent one.
func (d *Device) Name() string { return d.name }

// Type returns the device type.
func (d *Device) Type() DeviceType { return d.typ }

// Seat returns the seat the device belongs to.
func (d *Device) Seat() *Seat { return d.seat }

// Keyboard returns the device's keyboard interface, if it has one.
func (d *Device) Keyboard() (*Keyboard, bool) {
	return d.keyboard, d.keyboard != nil
}

// Resumed reports whether the device is currently allowed to emulate.
func (d *Device) Resumed() bool { return d.resumed }

// StartEmulating begins an emulation sequence.
func (d *Device) StartEmulating(serial, sequence uint32) {
	var e encoder
	e.uint32(serial).uint32(sequence)
	d.c.conn.send(d.id, reqDeviceStartEmulating, e.buf)
}

// StopEmulating ends the current emulation sequence.
func (d *Device) StopEmulating(serial uint32) {
	var e encoder
	e.uint32(serial)
	d.c.conn.send(d.id, reqDeviceStopEmulating, e.buf)
}

// Frame groups the preceding events. timestamp is in microseconds.
func (d *Device) Frame(serial uint32, timestamp uint64) {
	var e encoder
	e.uint32(serial).uint64(timestamp)
	d.c.conn.send(d.id, reqDeviceFrame, e.buf)
}

// Release tells the server the client no longer needs the device.
func (d *Device) Release() {
	d.c.conn.send(d.id, reqDeviceRelease, nil)
}

// Keyboard is the ei_keyboard interface of a device.
type Keyboard struct {
	c      *Client
	id     uint64
	device *Device
	keymap *Keymap
}

// Device returns the owning device.
func (k *Keyboard) Device() *Device { return k.device }

// Keymap returns the keymap the server attached, if any.
func (k *Keyboard) Keymap() (*Keymap, bool) {
	return k.keymap, k.keymap != nil
}

// Key queues a key event. key is an evdev keycode.
func (k *Keyboard) Key(key uint32, state KeyState) {
	var e encoder
	e.uint32(key).uint32(uint32(state))
	k.c.conn.send(k.id, reqKeyboardKey, e.buf)
}
