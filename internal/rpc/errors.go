package rpc

import (
	"errors"
	"fmt"
)

var (
	// ErrShortHeader is returned when fewer than 8 header bytes are decoded.
	ErrShortHeader = errors.New("frame header too short")

	// ErrFrameTooLarge is returned when the peer declares a body over MaxFrameBody.
	ErrFrameTooLarge = errors.New("frame body too large")

	// ErrClosedByPeer is returned when the Discord client sends a CLOSE frame.
	ErrClosedByPeer = errors.New("connection closed by discord client")

	// ErrMissingClientID is returned by Dial when no application id is configured.
	ErrMissingClientID = errors.New("client id is required")
)

// Error is an error reported by the Discord client, either as an ERROR event
// or in a CLOSE frame.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	closed bool
}

func (e *Error) Error() string {
	if e.closed {
		return fmt.Sprintf("discord closed connection: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("discord error: %s (code %d)", e.Message, e.Code)
}

// Unwrap lets errors.Is(err, ErrClosedByPeer) match close frames.
func (e *Error) Unwrap() error {
	if e.closed {
		return ErrClosedByPeer
	}
	return nil
}
