package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	srv "github.com/mohammad-safakhou/groundchat/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.Close(closeCtx)
			}()

			addr := a.cfg.Server.Address
			if serveAddr != "" {
				addr = serveAddr
			}
			e := srv.New(&srv.ChatHandler{
				Pipeline: a.pipeline,
				Logger:   a.logger,
				Timeout:  a.cfg.Server.RequestTimeout,
			}, srv.Options{
				Logger:    a.logger,
				Metrics:   a.telemetry.MetricsHandler(),
				BodyLimit: a.cfg.Server.BodyLimit,
			})
			return srv.Run(ctx, e, addr, a.logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
