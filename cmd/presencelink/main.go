// presencelink sets Discord rich presence from the command line.
package main

import (
	"os"

	"github.com/presencelink/presencelink/internal/cli"
	"github.com/presencelink/presencelink/internal/version"
)

// Version information, overridden by ldflags:
//
//	go build -ldflags "-X main.Version=v0.3.0 -X main.BuildTime=$(date -u +%Y-%m-%d)"
var (
	Version   = "v0.3.0-dev"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
