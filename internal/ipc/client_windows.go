//go:build windows

package ipc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Microsoft/go-winio"
)

// PipeRoot is the namespace the Discord client creates its pipes in.
const PipeRoot = `\\.\pipe\`

// attemptTimeout bounds how long winio waits on a busy pipe instance.
const attemptTimeout = 250 * time.Millisecond

// BaseDir returns the pipe namespace. The environment is not consulted on
// Windows.
func BaseDir() string {
	return PipeRoot
}

// Candidates returns the pipe names Connect will try, in order.
func Candidates() []string {
	candidates := make([]string, 0, MaxEndpoints)
	for i := 0; i < MaxEndpoints; i++ {
		candidates = append(candidates, PipeRoot+endpointPrefix+strconv.Itoa(i))
	}
	return candidates
}

// pipeDialer opens a fresh pipe handle per candidate.
type pipeDialer struct {
	timeout time.Duration
}

func newDialer() dialer {
	return &pipeDialer{timeout: attemptTimeout}
}

func (d *pipeDialer) prepare() error { return nil }

func (d *pipeDialer) attempt(endpoint string) (handle, error) {
	timeout := d.timeout
	conn, err := winio.DialPipe(endpoint, &timeout)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", endpoint, describePipeError(err), err)
	}
	return pipeHandle{conn: conn}, nil
}

func (d *pipeDialer) abort() {}
