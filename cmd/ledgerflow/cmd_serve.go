package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"ledgerflow/internal/logging"
	mcpserver "ledgerflow/internal/mcp"
	"ledgerflow/internal/telemetry"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing the route_intent,
reconcile and pipeline_graph tools.

The server monitors its parent process and exits when the client goes away.
With --metrics-addr, Prometheus metrics are served at /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for /metrics, e.g. :9090 (disabled when empty)")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalOptions, metricsAddr string) error {
	log := logging.New("serve")

	metrics, err := telemetry.New()
	if err != nil {
		return err
	}
	svc, st, err := openService(g.cfg, metrics)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		hs := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener stopped", "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = hs.Shutdown(sctx)
		}()
		log.Info("serving metrics", "addr", metricsAddr)
	}

	mcpserver.WatchParent(ctx, cancel, time.Second)

	log.Info("starting ledgerflow MCP server over stdio", "store", g.cfg.Store.Driver)
	return mcpserver.NewServer(svc, version).Run(ctx)
}
