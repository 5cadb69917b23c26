package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/auth"
	"github.com/agentvault/a2a-core/pkg/card"
	"github.com/agentvault/a2a-core/pkg/client"
)

func taskCommand() *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "Drive tasks against a remote A2A agent",
		Subcommands: []*cli.Command{
			taskSendCommand(),
			taskWatchCommand(),
		},
	}
}

func loadTargetCard(c *cli.Context) (*card.AgentCard, error) {
	cardPath := c.String("card")
	if cardPath == "" {
		return nil, fmt.Errorf("--card is required (a local Agent Card JSON file)")
	}
	return card.FromFile(cardPath)
}

func newResolver(c *cli.Context) (*auth.Resolver, error) {
	return auth.New(auth.Config{
		CredentialFile:  c.String("credential-file"),
		KeychainEnabled: c.Bool("keychain"),
	})
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "card", Required: true, Usage: "Path to the target agent's Agent Card JSON"},
		&cli.StringFlag{Name: "credential-file", Usage: "Flat .env or .json file of credentials"},
		&cli.BoolFlag{Name: "keychain", Usage: "Allow falling back to the OS keychain"},
	}
}

func taskSendCommand() *cli.Command {
	flags := append(authFlags(), &cli.StringFlag{
		Name:  "task-id",
		Usage: "Existing task id to append to, instead of initiating a new task",
	})
	return &cli.Command{
		Name:      "send",
		Usage:     "Sends a text message, initiating a task if --task-id is unset",
		ArgsUsage: "TEXT",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			text := c.Args().First()
			if text == "" {
				return fmt.Errorf("usage: a2actl task send --card CARD [--task-id ID] TEXT")
			}

			ac, err := loadTargetCard(c)
			if err != nil {
				return fmt.Errorf("load agent card: %w", err)
			}
			resolver, err := newResolver(c)
			if err != nil {
				return fmt.Errorf("build credential resolver: %w", err)
			}

			cl := client.New(client.DefaultConfig())
			message := a2a.Message{Role: a2a.RoleUser, Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: text}}}
			ctx := context.Background()

			if taskID := c.String("task-id"); taskID != "" {
				if _, err := cl.SendMessage(ctx, ac, taskID, message, resolver, nil); err != nil {
					return fmt.Errorf("send message: %w", err)
				}
				fmt.Println(taskID)
				return nil
			}

			taskID, err := cl.InitiateTask(ctx, ac, message, resolver, nil, nil)
			if err != nil {
				return fmt.Errorf("initiate task: %w", err)
			}
			fmt.Println(taskID)
			return nil
		},
	}
}

func taskWatchCommand() *cli.Command {
	flags := append(authFlags(), &cli.DurationFlag{
		Name:  "timeout",
		Value: 5 * time.Minute,
		Usage: "Overall watch timeout",
	})
	return &cli.Command{
		Name:      "watch",
		Usage:     "Streams events for a task until it reaches a terminal state",
		ArgsUsage: "TASK_ID",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			taskID := c.Args().First()
			if taskID == "" {
				return fmt.Errorf("usage: a2actl task watch --card CARD TASK_ID")
			}

			ac, err := loadTargetCard(c)
			if err != nil {
				return fmt.Errorf("load agent card: %w", err)
			}
			resolver, err := newResolver(c)
			if err != nil {
				return fmt.Errorf("build credential resolver: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			cl := client.New(client.DefaultConfig())
			events, errs := cl.ReceiveMessages(ctx, ac, taskID, resolver)
			for events != nil || errs != nil {
				select {
				case ev, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					printEvent(ev)
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					if err != nil {
						return fmt.Errorf("watch task: %w", err)
					}
				}
			}
			return nil
		},
	}
}

func printEvent(ev a2a.Event) {
	switch ev.Kind {
	case a2a.EventTaskStatusUpdate:
		fmt.Printf("[status] %s\n", ev.State)
	case a2a.EventTaskMessage:
		if ev.Message != nil {
			for _, part := range ev.Message.Parts {
				if part.Type == a2a.PartTypeText {
					fmt.Printf("[message:%s] %s\n", ev.Message.Role, part.Text)
				}
			}
		}
	case a2a.EventTaskArtifactUpdate:
		if ev.Artifact != nil {
			raw, _ := json.Marshal(ev.Artifact)
			fmt.Printf("[artifact] %s\n", raw)
		}
	case a2a.EventStreamError:
		fmt.Printf("[stream-error] %s: %s\n", ev.Code, ev.ErrMessage)
	}
}
