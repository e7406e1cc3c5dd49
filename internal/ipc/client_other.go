//go:build !unix && !windows

package ipc

// BaseDir returns "" on platforms without an ipc transport.
func BaseDir() string { return "" }

// Candidates returns no endpoints on platforms without an ipc transport.
func Candidates() []string { return nil }

type unsupportedDialer struct{}

func newDialer() dialer { return unsupportedDialer{} }

func (unsupportedDialer) prepare() error                 { return ErrUnsupported }
func (unsupportedDialer) attempt(string) (handle, error) { return nil, ErrUnsupported }
func (unsupportedDialer) abort()                         {}
