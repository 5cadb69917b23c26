// Package cli assembles the a2actl command surface: serve, card
// validate/fetch, and task send/watch. It generalizes the teacher's
// pkg/cli/app.go urfave/cli scaffold and its ADK_LOG_LEVEL verbose-flag
// convention onto the A2A core.
package cli

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

// NewApp builds the a2actl command-line application.
func NewApp(version string) *cli.App {
	app := &cli.App{
		Name:    "a2actl",
		Usage:   "AgentVault A2A Core command-line tools",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			cardCommand(),
			taskCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			configureLogging(c)
			return nil
		},
	}

	cli.AppHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}

USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}
   {{if .Commands}}
COMMANDS:
{{range .Commands}}{{if not .HideHelp}}   {{join .Names ", "}}{{ "\t"}}{{.Usage}}{{ "\n" }}{{end}}{{end}}{{end}}{{if .VisibleFlags}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Version}}
VERSION:
   {{.Version}}
   {{end}}
`

	return app
}

// configureLogging wires --verbose/AGENTVAULT_LOG_LEVEL into the default slog
// handler, echoing the teacher's ADK_LOG_LEVEL convention (pkg/cli/app.go)
// under the AGENTVAULT_* prefix the credential resolver already uses.
func configureLogging(c *cli.Context) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	if envLevel := os.Getenv("AGENTVAULT_LOG_LEVEL"); envLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(envLevel)); err == nil {
			level = lvl
		}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
