package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/homefix/booking-core/internal/grpcserver"
	"github.com/homefix/booking-core/internal/httpapi"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/sweeper"
)

func newServeCmd(configPath *string) *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health endpoint and the hold sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := sweeper.ValidateSchedule(a.cfg.ExpirySchedule); err != nil {
				return err
			}
			if migrateUp {
				if err := model.AutoMigrate(a.db); err != nil {
					return err
				}
			}

			router := httpapi.NewRouter(httpapi.Deps{
				Availability: a.availability,
				Bookings:     a.bookings,
				Providers:    a.providers,
				Packages:     a.packages,
				Ping:         a.ping,
			}, httpapi.Options{
				MaxRequestsPerMin: a.cfg.MaxRequestsPerMin,
				Production:        a.cfg.IsProduction(),
			}, a.logger)

			srv := &http.Server{
				Addr:              ":" + a.cfg.AppPort,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				return grpcserver.New(a.ping, 10*time.Second, a.logger).Serve(gctx, a.cfg.GRPCAddr)
			})
			g.Go(func() error {
				return sweeper.New(a.bookings, a.cfg.ExpirySchedule, a.logger).Run(gctx)
			})

			err = g.Wait()
			a.logger.Info("shutting down")
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
