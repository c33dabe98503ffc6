package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zhima-Mochi/minishop-storefront/internal/bootstrap"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	httppresentation "github.com/Zhima-Mochi/minishop-storefront/internal/presentation/http"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			tel, err := newTelemetry(cfg)
			if err != nil {
				return err
			}
			defer tel.close()
			log := tel.obs.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			stores, pool, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}
			locker, closeLocker, err := openLocker(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeLocker()

			if seedPath != "" {
				f, err := bootstrap.LoadSeed(seedPath)
				if err != nil {
					return err
				}
				n, err := bootstrap.Seed(ctx, stores, f)
				if err != nil {
					return err
				}
				log.Info("seed_loaded", observability.F("path", seedPath), observability.F("items", n))
			}

			app, err := bootstrap.New(cfg, stores, locker, tel.obs)
			if err != nil {
				return err
			}
			app.Start(context.Background())

			opts := httppresentation.Options{Metrics: tel.registry.Handler()}
			if pool != nil {
				opts.Health = pool.Ping
			}
			server := &http.Server{
				Addr:         cfg.HTTP.Addr,
				Handler:      app.Handler(opts),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Info("http_server_start",
					observability.F("addr", server.Addr),
					observability.F("store", cfg.Store.Driver),
					observability.F("lock", cfg.Lock.Driver),
				)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					log.Error("http_server_error", observability.F("error", err))
					app.Stop(context.Background())
					return fmt.Errorf("serve: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()

			// HTTP first so in-flight requests can still publish, then drain the bus.
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("http_server_shutdown_error", observability.F("error", err))
			} else {
				log.Info("http_server_stopped")
			}
			app.Stop(shutdownCtx)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "YAML seed file loaded before serving")
	return cmd
}
