package ei

import "fmt"

// Event is something the server told the client.
type Event interface {
	isEvent()
}

// SeatAdded is emitted once a seat's capabilities are known.
type SeatAdded struct {
	Seat *Seat
}

// SeatRemoved is emitted when the server destroys a seat.
type SeatRemoved struct {
	Seat *Seat
}

// DeviceAdded is emitted once a device's description is complete.
type DeviceAdded struct {
	Device *Device
}

// DeviceRemoved is emitted when the server destroys a device.
type DeviceRemoved struct {
	Device *Device
}

// DeviceResumed means the device may now emulate input.
type DeviceResumed struct {
	Device *Device
}

// DevicePaused means emulation must stop until the next resume.
type DevicePaused struct {
	Device *Device
}

// KeymapChanged is emitted when a keyboard receives a new keymap.
type KeymapChanged struct {
	Keyboard *Keyboard
}

// Disconnected is the last event of a connection.
type Disconnected struct {
	Reason      DisconnectReason
	Explanation string
}

func (SeatAdded) isEvent() {}
func (SeatRemoved) isEvent() {}
func (DeviceAdded) isEvent() {}
func (DeviceRemoved) isEvent() {}
func (DeviceResumed) isEvent() {}
func (DevicePaused) isEvent() {}
func (KeymapChanged) isEvent() {}
func (Disconnected) isEvent() {}

// Err converts the disconnect into an error.
func (d Disconnected) Err() error {
	if d.Explanation == "" {
		return fmt.Errorf("%w: %s", ErrClosed, d.Reason)
	}
	return fmt.Errorf("%w: %s: %s", ErrClosed, d.Reason, d.Explanation)
}
