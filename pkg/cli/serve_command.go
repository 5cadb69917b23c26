package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/agentvault/a2a-core/pkg/a2a"
	"github.com/agentvault/a2a-core/pkg/config"
	"github.com/agentvault/a2a-core/pkg/registry"
	"github.com/agentvault/a2a-core/pkg/server"
	"github.com/agentvault/a2a-core/pkg/skeleton"
	"github.com/agentvault/a2a-core/pkg/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "Hosts the A2A dispatcher (and, optionally, the registry catalog)",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "YAML config file (pkg/config.ServeConfig); flags override its values"},
			&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "Host to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to bind"},
			&cli.StringFlag{Name: "api-key", Usage: "If set, require this value in X-Api-Key/Bearer auth"},
			&cli.StringFlag{Name: "registry-db", Usage: "sqlite DSN for the registry catalog; registry routes are disabled if unset"},
			&cli.StringSliceFlag{Name: "cors-origin", Usage: "Allowed CORS origins (repeatable); defaults to allow-all"},
			&cli.BoolFlag{Name: "metrics", Usage: "Expose Prometheus metrics on /metrics"},
			&cli.BoolFlag{Name: "supports-follow-up", Value: true, Usage: "Deliver a follow-up tasks/send to the running worker's input channel"},
		},
		Action: serveCommandAction,
	}
}

// echoWorker is the built-in demo worker: it acknowledges the initiating
// message and completes the task immediately. Real deployments supply
// their own skeleton.Worker; a2actl serve exists to exercise the
// dispatcher, not to host business logic (agent reasoning is out of
// scope for this core, spec.md Non-goals).
func echoWorker(ctx context.Context, emit skeleton.Emitter, initial a2a.Message) error {
	if err := emit.UpdateState(a2a.TaskWorking, nil); err != nil {
		return err
	}
	reply := a2a.Message{
		Role:  a2a.RoleAssistant,
		Parts: []a2a.Part{{Type: a2a.PartTypeText, Text: "acknowledged"}},
	}
	if err := emit.AppendMessage(reply); err != nil {
		return err
	}
	return emit.UpdateState(a2a.TaskCompleted, nil)
}

func serveCommandAction(c *cli.Context) error {
	cfg := config.DefaultServeConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.IsSet("host") {
		cfg.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("api-key") {
		cfg.APIKey = c.String("api-key")
	}
	if c.IsSet("registry-db") {
		cfg.RegistryDB = c.String("registry-db")
	}
	if c.IsSet("cors-origin") {
		cfg.CORSOrigins = c.StringSlice("cors-origin")
	}
	if c.IsSet("metrics") {
		cfg.Metrics = c.Bool("metrics")
	}
	if c.IsSet("supports-follow-up") {
		cfg.SupportsFollowUp = c.Bool("supports-follow-up")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var metricsReg prometheus.Registerer
	if cfg.Metrics {
		metricsReg = prometheus.DefaultRegisterer
	}

	st := store.New(store.NewMetrics(metricsReg))
	sk := skeleton.New(st, echoWorker, cfg.SupportsFollowUp)

	var apiKeyLookup server.APIKeyLookup
	if cfg.APIKey != "" {
		apiKey := cfg.APIKey
		apiKeyLookup = func(candidate string) bool { return candidate == apiKey }
	}

	srv := server.New(server.Config{
		Skeleton:     sk,
		APIKeyLookup: apiKeyLookup,
		CORSOrigins:  cfg.CORSOrigins,
	})

	if cfg.RegistryDB != "" {
		reg, err := registry.New(registry.Config{DataSourceName: cfg.RegistryDB})
		if err != nil {
			return fmt.Errorf("open registry: %w", err)
		}
		defer reg.Close()
		reg.RegisterRoutes(srv.Engine.Group("/"))
		slog.Info("a2actl serve: registry catalog enabled", "dsn", cfg.RegistryDB)
	}

	if cfg.Metrics {
		srv.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	slog.Info("a2actl serve: listening", "addr", addr)
	fmt.Fprintf(os.Stderr, "a2actl serve: listening on http://%s\n", addr)
	return srv.Engine.Run(addr)
}
