package typer

import "eitype/internal/ei"

// Transport is the device handle the emitter drives. Requests are queued
// and written by Flush, which may report would-block.
type Transport interface {
	Serial() uint32
	StartEmulating(serial, sequence uint32)
	StopEmulating(serial uint32)
	Key(keycode uint32, state ei.KeyState)
	Frame(serial uint32, timestamp uint64)
	Flush() error
	Disconnect()
	Close() error
}

// eiTransport adapts a connected EI keyboard device to Transport.
type eiTransport struct {
	client   *ei.Client
	device   *ei.Device
	keyboard *ei.Keyboard
}

func (t *eiTransport) Serial() uint32 { return t.client.Serial() }

func (t *eiTransport) StartEmulating(serial, sequence uint32) {
	t.device.StartEmulating(serial, sequence)
}

func (t *eiTransport) StopEmulating(serial uint32) { t.device.StopEmulating(serial) }

func (t *eiTransport) Key(keycode uint32, state ei.KeyState) { t.keyboard.Key(keycode, state) }

func (t *eiTransport) Frame(serial uint32, timestamp uint64) {
	t.device.Frame(serial, timestamp)
}

func (t *eiTransport) Flush() error { return t.client.Flush() }

func (t *eiTransport) Disconnect() { t.client.Disconnect() }

func (t *eiTransport) Close() error { return t.client.Close() }
