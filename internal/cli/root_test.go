package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/presencelink/presencelink/internal/ipc"
	"github.com/presencelink/presencelink/internal/version"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	for _, name := range []string{"probe", "set", "clear", "config", "version", "completion"} {
		if sub, _, err := root.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}

	for _, flag := range []string{"config", "verbose", "debug", "json-logs"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(context.Background(), t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, version.Version) {
		t.Errorf("version output %q missing %s", out, version.Version)
	}
}

func TestProbeListOnly(t *testing.T) {
	orig := connectIPC
	defer func() { connectIPC = orig }()
	connectIPC = func() (*ipc.Conn, error) {
		t.Fatal("--list must not connect")
		return nil, nil
	}

	out, err := runCLI(context.Background(), t, "probe", "--list")
	if err != nil {
		t.Fatalf("probe --list error = %v", err)
	}
	for _, c := range ipc.Candidates() {
		if !strings.Contains(out, c) {
			t.Errorf("probe output missing candidate %s", c)
		}
	}
}

func TestProbeNoEndpoint(t *testing.T) {
	orig := connectIPC
	defer func() { connectIPC = orig }()
	connectIPC = func() (*ipc.Conn, error) {
		return nil, ipc.ErrNoEndpointFound
	}

	out, err := runCLI(context.Background(), t, "probe")
	if !errors.Is(err, ipc.ErrNoEndpointFound) {
		t.Fatalf("expected ErrNoEndpointFound, got %v", err)
	}
	if !strings.Contains(out, "No Discord client is listening") {
		t.Errorf("unexpected output %q", out)
	}
}
