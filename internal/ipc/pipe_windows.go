//go:build windows

package ipc

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
)

// Windows error codes seen when opening a named pipe.
const (
	ERROR_FILE_NOT_FOUND = syscall.Errno(2)
	ERROR_ACCESS_DENIED  = syscall.Errno(5)
	ERROR_PIPE_BUSY      = syscall.Errno(231)
)

// describePipeError names the reason a pipe could not be opened.
// winio wraps the errno, so errors.As is used rather than os.IsNotExist.
func describePipeError(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case ERROR_FILE_NOT_FOUND:
			return "absent"
		case ERROR_PIPE_BUSY:
			return "busy"
		case ERROR_ACCESS_DENIED:
			return "access denied"
		}
	}
	if errors.Is(err, winio.ErrTimeout) {
		return "busy"
	}
	return "unavailable"
}

// readWait is how long a read waits for pending data. Pipe reads block,
// so an idle pipe yields an empty read after readWait, the same outcome as
// the non-blocking Unix socket.
const readWait = 10 * time.Millisecond

// pipeHandle is an open pipe client handle.
type pipeHandle struct {
	conn net.Conn
}

func (h pipeHandle) read(p []byte) (int, error) {
	if err := h.conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		return 0, err
	}
	n, err := h.conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, winio.ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (h pipeHandle) write(p []byte) (int, error) {
	return h.conn.Write(p)
}

func (h pipeHandle) close() error {
	return h.conn.Close()
}
