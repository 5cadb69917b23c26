package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agentvault/a2a-core/pkg/card"
)

func cardCommand() *cli.Command {
	return &cli.Command{
		Name:  "card",
		Usage: "Inspect Agent Card documents",
		Subcommands: []*cli.Command{
			cardValidateCommand(),
			cardFetchCommand(),
		},
	}
}

func cardValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validates a local Agent Card JSON file",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("usage: a2actl card validate PATH")
			}
			ac, err := card.FromFile(path)
			if err != nil {
				return fmt.Errorf("invalid agent card: %w", err)
			}
			fmt.Printf("valid: %s (%s)\n", ac.Name, ac.HumanReadableID)
			return nil
		},
	}
}

func cardFetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetches and validates a remote Agent Card",
		ArgsUsage: "URL",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "HTTP fetch timeout"},
		},
		Action: func(c *cli.Context) error {
			rawURL := c.Args().First()
			if rawURL == "" {
				return fmt.Errorf("usage: a2actl card fetch URL")
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			ac, err := card.FromURL(ctx, rawURL, card.DefaultLoaderConfig())
			if err != nil {
				return fmt.Errorf("fetch agent card: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ac)
		},
	}
}
