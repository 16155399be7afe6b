package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/regionproxy/internal/http/server"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
	"github.com/dropDatabas3/regionproxy/internal/observability/tracing"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el listener público y el admin (/metrics, /readyz)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			log := logger.L()

			ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
				Endpoint:    cfg.Telemetry.OTLPEndpoint,
				ServiceName: cfg.Telemetry.ServiceName,
			})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := shutdownTracing(sctx); err != nil {
					log.Warn("tracing shutdown failed", logger.Err(err))
				}
			}()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			app, err := server.Build(ctx, cfg, server.Deps{Registry: reg})
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					log.Warn("kv close failed", logger.Err(err))
				}
			}()

			listeners := []server.Listener{server.NewListener("public", cfg.Server.Addr, app.Handler)}
			if cfg.Server.AdminAddr != "" {
				listeners = append(listeners, server.NewListener("admin", cfg.Server.AdminAddr, app.Admin))
			}
			return server.Run(ctx, cfg.Server.ShutdownTimeout, listeners...)
		},
	}
}
