// Package ei implements the sender side of the Emulated Input (EI) protocol.
//
// The client speaks the libei wire format over a Unix socket: a 16-byte
// header (object id, message length, opcode) followed by 4-byte aligned
// arguments, with file descriptors passed as SCM_RIGHTS ancillary data.
// Only the objects a keyboard sender needs are modelled.
package ei

// Interface names.
const (
	ifaceHandshake  = "ei_handshake"
	ifaceConnection = "ei_connection"
	ifaceCallback   = "ei_callback"
	ifacePingpong   = "ei_pingpong"
	ifaceSeat       = "ei_seat"
	ifaceDevice     = "ei_device"
	ifaceKeyboard   = "ei_keyboard"

	// CapabilityKeyboard is the seat capability bound for key emulation.
	CapabilityKeyboard = ifaceKeyboard
)

// supportedInterfaces are announced during the handshake.
var supportedInterfaces = []struct {
	name    string
	version uint32
}{
	{ifaceConnection, 1},
	{ifaceCallback, 1},
	{ifacePingpong, 1},
	{ifaceSeat, 1},
	{ifaceDevice, 1},
	{ifaceKeyboard, 1},
}

const handshakeVersion = 1

// ContextType selects the role announced in the handshake.
type ContextType uint32

const (
	ContextReceiver ContextType = 1
	ContextSender   ContextType = 2
)

// KeyState is the state argument of ei_keyboard.key.
type KeyState uint32

const (
	KeyReleased KeyState = 0
	KeyPressed  KeyState = 1
)

func (s KeyState) String() string {
	if s == KeyPressed {
		return "press"
	}
	return "released"
}

// KeymapTypeXKB is the only keymap type defined by the protocol.
const KeymapTypeXKB = 1

// ei_handshake
const (
	reqHandshakeVersion   = 0
	reqHandshakeFinish    = 1
	reqHandshakeContext   = 2
	reqHandshakeName      = 3
	reqHandshakeInterface = 4

	evHandshakeVersion    = 0
	evHandshakeInterface  = 1
	evHandshakeConnection = 2
)

// ei_connection
const (
	reqConnectionSync       = 0
	reqConnectionDisconnect = 1

	evConnectionDisconnected  = 0
	evConnectionSeat          = 1
	evConnectionInvalidObject = 2
	evConnectionPing          = 3
)

// ei_pingpong
const reqPingpongDone = 0

// ei_seat
const (
	reqSeatRelease = 0
	reqSeatBind    = 1

	evSeatDestroyed  = 0
	evSeatName       = 1
	evSeatCapability = 2
	evSeatDone       = 3
	evSeatDevice     = 4
)

// ei_device
const (
	reqDeviceRelease        = 0
	reqDeviceStartEmulating = 1
	reqDeviceStopEmulating  = 2
	reqDeviceFrame          = 3

	evDeviceDestroyed  = 0
	evDeviceName       = 1
	evDeviceType       = 2
	evDeviceDimensions = 3
	evDeviceRegion     = 4
	evDeviceInterface  = 5
	evDeviceDone       = 6
	evDeviceResumed    = 7
	evDevicePaused     = 8
)

// ei_keyboard
const (
	reqKeyboardRelease = 0
	reqKeyboardKey     = 1

	evKeyboardDestroyed = 0
	evKeyboardKeymap    = 1
	evKeyboardKey       = 2
	evKeyboardModifiers = 3
)

// DisconnectReason is the reason code of ei_connection.disconnected.
type DisconnectReason uint32

const (
	DisconnectDisconnected DisconnectReason = 0
	DisconnectError        DisconnectReason = 1
	DisconnectMode         DisconnectReason = 2
	DisconnectProtocol     DisconnectReason = 3
	DisconnectValue        DisconnectReason = 4
	DisconnectTransport    DisconnectReason = 5
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectDisconnected:
		return "disconnected"
	case DisconnectError:
		return "error"
	case DisconnectMode:
		return "mode"
	case DisconnectProtocol:
		return "protocol"
	case DisconnectValue:
		return "value"
	case DisconnectTransport:
		return "transport"
	default:
		return "unknown"
	}
}
