//go:build unix

package ipc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// baseDirEnv lists the environment variables consulted for the socket
// directory, in order of precedence.
var baseDirEnv = []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"}

// defaultBaseDir is used when none of baseDirEnv is set.
const defaultBaseDir = "/tmp"

// BaseDir returns the directory holding the discord-ipc-N sockets.
func BaseDir() string {
	for _, key := range baseDirEnv {
		if dir := os.Getenv(key); dir != "" {
			return dir
		}
	}
	return defaultBaseDir
}

// Candidates returns the socket paths Connect will try, in order.
// The list is rebuilt from the environment on every call.
func Candidates() []string {
	base := BaseDir()
	candidates := make([]string, 0, MaxEndpoints)
	for i := 0; i < MaxEndpoints; i++ {
		candidates = append(candidates, filepath.Join(base, endpointPrefix+strconv.Itoa(i)))
	}
	return candidates
}

// socketDialer connects a single non-blocking domain socket, reusing the same
// descriptor for every candidate until one connect succeeds.
type socketDialer struct {
	fd int
}

func newDialer() dialer {
	return &socketDialer{fd: -1}
}

func (d *socketDialer) prepare() error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSocketCreation, err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("%w: set non-blocking: %v", ErrSocketCreation, err)
	}

	d.fd = fd
	return nil
}

func (d *socketDialer) attempt(endpoint string) (handle, error) {
	if err := unix.Connect(d.fd, &unix.SockaddrUnix{Name: endpoint}); err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	return fdHandle(d.fd), nil
}

func (d *socketDialer) abort() {
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
}

// fdHandle is a connected domain socket descriptor.
type fdHandle int

func (h fdHandle) read(p []byte) (int, error) {
	n, err := unix.Read(int(h), p)
	if err != nil {
		// Nothing pending on the non-blocking socket.
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, nil
		}
		return 0, fmt.Errorf("read: %w", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (h fdHandle) write(p []byte) (int, error) {
	n, err := unix.Write(int(h), p)
	if err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

func (h fdHandle) close() error {
	return unix.Close(int(h))
}
