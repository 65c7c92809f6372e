package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/efebarandurmaz/archscore/internal/app"
	"github.com/efebarandurmaz/archscore/internal/config"
	"github.com/efebarandurmaz/archscore/internal/observability"
	"github.com/efebarandurmaz/archscore/internal/server"
	temporalmod "github.com/efebarandurmaz/archscore/internal/temporal"

	temporalclient "go.temporal.io/sdk/client"
)

var version = "dev"

func main() {
	configPath := "archscore.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := observability.SetupLogging(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("logging: %v", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, version)
	if err != nil {
		log.Fatalf("build: %v", err)
	}
	defer a.Close(ctx)

	temporalmod.SetDependencies(&temporalmod.Dependencies{Service: a.Service})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()
	a.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)
	if resp := a.Health.Check(ctx); resp.Status != server.HealthStatusHealthy {
		slog.Warn("worker dependencies not healthy", "status", resp.Status, "checks", resp.Checks)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	w.Stop()
	fmt.Println("Worker stopped")
}
