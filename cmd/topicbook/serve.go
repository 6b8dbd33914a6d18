package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammad-safakhou/topicbook/internal/runtime"
	"github.com/mohammad-safakhou/topicbook/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				a.cfg.Server.Address = serveAddr
				a.cfg.Server = a.cfg.Server.Normalize()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			tel, err := runtime.SetupTelemetry(ctx, a.cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: version})
			if err != nil {
				return err
			}
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				if err := tel.Shutdown(sctx); err != nil {
					a.logger.WithError(err).Warn("telemetry shutdown")
				}
			}()

			engine, err := a.engine()
			if err != nil {
				return err
			}
			reg, sink, cleanup, err := a.registry(ctx, engine)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := server.New(a.cfg.Server, reg, a.store, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			if sink != nil {
				g.Go(func() error {
					sink.Run(context.WithoutCancel(gctx))
					return nil
				})
			}
			g.Go(func() error { return srv.Start(a.cfg.Server.Address) })
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				// Draining tasks first ends their event streams, so open SSE
				// requests finish before the HTTP server waits on them.
				stopInOrder(a.logger,
					stopStep{name: "tasks", timeout: 30 * time.Second, stop: reg.Shutdown},
					stopStep{name: "http", timeout: 10 * time.Second, stop: srv.Shutdown},
				)
				if sink != nil {
					sink.Close()
				}
				return nil
			})
			return g.Wait()
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")
	return serve
}
