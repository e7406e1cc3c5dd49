// Package ipc connects to the Discord desktop client's local IPC endpoint and
// moves raw frames over it.
//
// On Unix-like systems the endpoint is a domain socket named discord-ipc-N in
// the runtime directory; on Windows it is the named pipe \\.\pipe\discord-ipc-N.
// N ranges over 0-9 and the first endpoint that accepts a connection is used.
//
// The package is thin: one syscall per Read or Write, no
// buffering, no retries and no logging. Frame reassembly and reconnect policy
// belong to the caller.
package ipc

import (
	"fmt"
	"math"
)

// MaxEndpoints is the number of discord-ipc-N slots probed by Connect.
const MaxEndpoints = 10

const endpointPrefix = "discord-ipc-"

// handle is one live platform connection.
type handle interface {
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	close() error
}

// dialer is the platform half of Connect.
type dialer interface {
	// prepare allocates anything shared across attempts.
	prepare() error
	// attempt tries a single endpoint.
	attempt(endpoint string) (handle, error)
	// abort releases what prepare allocated. Called only when no attempt succeeded.
	abort()
}

// Conn is a connection to the Discord client. The zero value is not
// connected, and a Conn returns to that state after Close; every I/O method
// then fails with ErrNotConnected without touching the OS.
//
// A Conn is owned by the caller that opened it and is not safe for
// concurrent use.
type Conn struct {
	h        handle
	endpoint string
}

// Connect probes the candidate endpoints in ascending order and returns a Conn
// for the first one that accepts. It makes exactly MaxEndpoints attempts
// before giving up with ErrNoEndpointFound.
func Connect() (*Conn, error) {
	return connect(Candidates(), newDialer())
}

func connect(candidates []string, d dialer) (*Conn, error) {
	if err := d.prepare(); err != nil {
		return nil, err
	}

	var lastErr error
	for _, endpoint := range candidates {
		h, err := d.attempt(endpoint)
		if err == nil {
			return &Conn{h: h, endpoint: endpoint}, nil
		}
		lastErr = err
	}

	d.abort()
	return nil, fmt.Errorf("%w: tried %d endpoints, last error: %v", ErrNoEndpointFound, len(candidates), lastErr)
}

// Connected reports whether c holds a live connection.
func (c *Conn) Connected() bool {
	return c != nil && c.h != nil
}

// Endpoint returns the endpoint c connected to, or "" when not connected.
func (c *Conn) Endpoint() string {
	if !c.Connected() {
		return ""
	}
	return c.endpoint
}

// Read performs a single read of up to capacity bytes and returns exactly the
// bytes read. A short or empty result is returned as-is. On Unix the socket is
// non-blocking, so a read with nothing pending returns an empty slice and a
// nil error. On Windows a pipe read waits at most readWait (10ms) for data
// and then returns an empty slice and a nil error the same way.
// io.EOF is returned once the peer has closed the connection.
func (c *Conn) Read(capacity int) ([]byte, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	if capacity < 0 {
		return nil, fmt.Errorf("ipc: negative read capacity %d", capacity)
	}

	buf := make([]byte, capacity)
	n, err := c.h.read(buf)
	if err != nil {
		return buf[:n], err
	}
	return buf[:n], nil
}

// Write frames payload with opcode and hands the whole frame to a single
// write call. It returns the number of bytes the OS accepted, which may be
// less than HeaderSize+len(payload); Write does not retry short writes.
func (c *Conn) Write(opcode int32, payload string) (int, error) {
	if !c.Connected() {
		return 0, ErrNotConnected
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return 0, fmt.Errorf("ipc: payload of %d bytes exceeds frame length field", len(payload))
	}
	return c.h.write(EncodeFrame(opcode, []byte(payload)))
}

// Close releases the underlying descriptor and leaves c not connected.
// Closing a Conn that is not connected returns ErrNotConnected.
func (c *Conn) Close() error {
	if !c.Connected() {
		return ErrNotConnected
	}
	h := c.h
	c.h = nil
	c.endpoint = ""
	return h.close()
}
