package rpc

import (
	"encoding/binary"
	"fmt"

	"github.com/presencelink/presencelink/internal/ipc"
)

// MaxFrameBody caps the declared body length accepted from the peer.
const MaxFrameBody = 64 * 1024

// Frame is one decoded message: opcode plus its JSON body.
type Frame struct {
	Opcode int32
	Body   []byte
}

// DecodeHeader parses the 8-byte header produced by ipc.EncodeHeader.
func DecodeHeader(b []byte) (opcode int32, length uint32, err error) {
	if len(b) < ipc.HeaderSize {
		return 0, 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortHeader, ipc.HeaderSize, len(b))
	}
	opcode = int32(binary.LittleEndian.Uint32(b[0:4]))
	length = binary.LittleEndian.Uint32(b[4:8])
	return opcode, length, nil
}

// frameBuffer accumulates raw reads until whole frames are available.
// A single ipc read may carry part of a frame or several frames.
type frameBuffer struct {
	pending []byte
}

func (b *frameBuffer) write(p []byte) {
	b.pending = append(b.pending, p...)
}

func (b *frameBuffer) buffered() int {
	return len(b.pending)
}

// next pops the first complete frame. ok is false when more bytes are needed.
func (b *frameBuffer) next() (f Frame, ok bool, err error) {
	if len(b.pending) < ipc.HeaderSize {
		return Frame{}, false, nil
	}

	opcode, length, err := DecodeHeader(b.pending)
	if err != nil {
		return Frame{}, false, err
	}
	if length > MaxFrameBody {
		return Frame{}, false, fmt.Errorf("%w: declared %d bytes", ErrFrameTooLarge, length)
	}

	total := ipc.HeaderSize + int(length)
	if len(b.pending) < total {
		return Frame{}, false, nil
	}

	body := make([]byte, length)
	copy(body, b.pending[ipc.HeaderSize:total])

	rest := copy(b.pending, b.pending[total:])
	b.pending = b.pending[:rest]

	return Frame{Opcode: opcode, Body: body}, true, nil
}
