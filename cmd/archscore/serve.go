package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/efebarandurmaz/archscore/internal/api"
	"github.com/efebarandurmaz/archscore/internal/diagram"
	"github.com/efebarandurmaz/archscore/internal/server"
	temporalmod "github.com/efebarandurmaz/archscore/internal/temporal"
	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}

			sc := &api.Config{
				ListenAddr:   c.cfg.Server.Addr,
				ReadTimeout:  c.cfg.Server.ReadTimeout,
				WriteTimeout: c.cfg.Server.WriteTimeout,
			}
			if addr != "" {
				sc.ListenAddr = addr
			}
			srv := api.NewServer(sc, a.Service, api.NewHub(), a.Health, a.Metrics)

			shutdown := server.NewShutdownHandler(0)
			shutdown.RegisterHook("http", server.PriorityHTTP, func(ctx context.Context) error {
				a.Health.SetReady(false)
				return srv.Stop(ctx)
			})
			shutdown.RegisterHook("app", server.PriorityStore, a.Close)
			shutdown.Start()

			a.Health.SetReady(true)
			if err := srv.Start(); err != nil {
				shutdown.Shutdown()
				shutdown.Wait()
				return err
			}
			shutdown.Wait()
			slog.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// trackDurable runs the score-and-track workflow on a Temporal worker and
// prints its result.
func (c *cli) trackDurable(cmd *cobra.Command, session string, d *diagram.Diagram, jsonOut bool) error {
	ctx := cmd.Context()
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	tc, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  c.cfg.Temporal.Host,
		Namespace: c.cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer tc.Close()

	out, err := temporalmod.Run(ctx, tc, c.cfg.Temporal.TaskQueue, temporalmod.ScoreAndTrackInput{
		SessionID:   session,
		DiagramType: string(d.Type),
		DiagramJSON: string(payload),
	}, a.Audit)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), out)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Identity: %s\n", out.Identity)
	fmt.Fprintf(w, "Score:    %d/100\n", out.Total)
	fmt.Fprintf(w, "Trend:    %s\n", out.TrendStatus)
	if out.SnapshotID != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", out.SnapshotID)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
	return nil
}
