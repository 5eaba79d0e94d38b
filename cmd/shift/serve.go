package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/shift/pkg/copilot"
	"github.com/go-go-golems/shift/pkg/events"
	"github.com/go-go-golems/shift/pkg/metrics"
	"github.com/go-go-golems/shift/pkg/server"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand() *cobra.Command {
	var (
		address        string
		allowedOrigins []string
		requestTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the copilot over HTTP",
		Long: `Serve the copilot over HTTP.

The server holds a single conversation and is meant for one user: every
client sees the same /api/history, and while one request is in flight the
others get 409 Conflict.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWithEvents(ctx, func(ctx context.Context, sinks []events.EventSink) error {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				m := metrics.NewMetrics(reg)

				a, err := newApp(ctx, false, m, sinks)
				if err != nil {
					return err
				}
				c := copilot.New(a.dispatcher, copilot.WithMetrics(m))
				handler := server.NewRouter(server.NewService(c, reg), allowedOrigins, requestTimeout)

				srv := &http.Server{
					Addr:              address,
					Handler:           handler,
					ReadHeaderTimeout: 10 * time.Second,
				}

				eg, ctx := errgroup.WithContext(ctx)
				eg.Go(func() error {
					log.Info().Str("address", address).Msg("Serving")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return errors.Wrap(err, "server failed")
					}
					return nil
				})
				eg.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					log.Info().Msg("Shutting down")
					return srv.Shutdown(shutdownCtx)
				})
				return eg.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", ":8080", "Listen address")
	cmd.Flags().StringSliceVar(&allowedOrigins, "cors-origin", []string{"*"}, "Allowed CORS origins")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", server.DefaultRequestTimeout, "Per-request timeout")
	return cmd
}
