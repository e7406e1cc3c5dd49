package ipc

import (
	"encoding/binary"
)

// HeaderSize is the size of the fixed frame header: opcode then payload length.
const HeaderSize = 8

// EncodeHeader builds the 8-byte frame header. Both fields are written
// little-endian regardless of host byte order, which is what the Discord
// client expects on the wire.
func EncodeHeader(opcode int32, length uint32) [HeaderSize]byte {
	var h [HeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(h[4:8], length)
	return h
}

// EncodeFrame returns header || payload as a single buffer.
func EncodeFrame(opcode int32, payload []byte) []byte {
	h := EncodeHeader(opcode, uint32(len(payload)))
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf, h[:])
	copy(buf[HeaderSize:], payload)
	return buf
}
