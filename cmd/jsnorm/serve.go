package main

import (
	"github.com/spf13/cobra"

	"github.com/reoring/jsnorm/internal/metrics"
	"github.com/reoring/jsnorm/internal/server"
)

func ServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the normalizing HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			if addr != "" {
				cfg.Server.Addr = addr
			}
			store, closeStore, err := server.NewStore(ctx, cfg.Repository)
			if err != nil {
				return err
			}
			defer closeStore()
			var m *metrics.Service
			if cfg.Server.Metrics {
				m = metrics.New()
			}
			return server.New(ctx, cfg, store, m).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
