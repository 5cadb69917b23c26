// Command a2actl is the AgentVault A2A Core CLI: it can host a minimal
// A2A dispatcher, validate and fetch Agent Cards, and drive tasks against
// a remote agent from the command line. It generalizes the teacher's
// pkg/cli/app.go urfave/cli scaffold onto the A2A surface.
package main

import (
	"fmt"
	"log/slog"
	"os"

	a2acli "github.com/agentvault/a2a-core/pkg/cli"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	app := a2acli.NewApp(Version)
	if err := app.Run(os.Args); err != nil {
		slog.Error("a2actl: command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
