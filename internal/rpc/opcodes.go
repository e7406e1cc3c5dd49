package rpc

// Opcodes carried in the ipc frame header.
const (
	OpHandshake int32 = 0
	OpFrame     int32 = 1
	OpClose     int32 = 2
	OpPing      int32 = 3
	OpPong      int32 = 4
)

// OpName returns a printable name for an opcode.
func OpName(op int32) string {
	switch op {
	case OpHandshake:
		return "HANDSHAKE"
	case OpFrame:
		return "FRAME"
	case OpClose:
		return "CLOSE"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	default:
		return "UNKNOWN"
	}
}

// Commands and events used by this client.
const (
	CmdDispatch    = "DISPATCH"
	CmdSetActivity = "SET_ACTIVITY"

	EvtReady = "READY"
	EvtError = "ERROR"
)

// ProtocolVersion is sent in the handshake.
const ProtocolVersion = 1
