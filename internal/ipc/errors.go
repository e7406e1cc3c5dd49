package ipc

import "errors"

var (
	// ErrNoEndpointFound is returned by Connect when none of the candidate
	// endpoints accepted a connection.
	ErrNoEndpointFound = errors.New("no discord ipc endpoint found")

	// ErrSocketCreation is returned by Connect when the domain socket
	// descriptor could not be allocated.
	ErrSocketCreation = errors.New("failed to create ipc socket")

	// ErrNotConnected is returned by I/O on a Conn that was never opened or
	// has already been closed.
	ErrNotConnected = errors.New("ipc: not connected")

	// ErrUnsupported is returned on platforms without an ipc transport.
	ErrUnsupported = errors.New("ipc: unsupported platform")
)
