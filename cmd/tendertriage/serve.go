package main

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tendertriage/internal/adapters/httpapi"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset and serve the triage API and dashboard",
		Long: `Loads the configured source once, then answers GET /api/anomalies by
re-running the cascade on every request. PUT /api/cases/{id} applies analyst
overrides. Static dashboard files are served from server.static_dir.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			a, err := bootstrap(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			router := httpapi.NewRouter(a.svc, httpapi.RouterOptions{
				StaticDir:   c.cfg.Server.StaticDir,
				CORSOrigins: c.cfg.Server.CORSOrigins,
				Metrics:     promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
				Logger:      c.logger.Named("http"),
			})
			srv := httpapi.NewServer(c.cfg.Server.Addr, router, c.cfg.Server.ShutdownTimeout, c.logger)
			c.logger.Info("serving tenders", zap.Int("records", a.summary.Loaded), zap.String("addr", c.cfg.Server.Addr))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
