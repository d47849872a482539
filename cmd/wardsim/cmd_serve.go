package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/wardsim/internal/api"
	"github.com/ajitpratap0/wardsim/internal/simulation"
)

func serveCmd() *cobra.Command {
	var (
		flags  modeFlags
		paused bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server over a live simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			mode, err := flags.apply()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			w, err := newWorld(logger, mode, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = w.Close() }()

			runner := simulation.NewRunner(w.sim, cfg.Simulation.Tick, cfg.Simulation.Speed, logger)
			if !paused {
				go func() { _ = runner.Run(ctx) }()
			}

			srv := api.NewServer(runner, w.log, cfg.Simulation.Tick, logger, cfg.API.AuthToken)

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set WARDSIM_API_AUTH_TOKEN or cfg.api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "run_id", w.sim.RunID(), "paused", paused)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case startErr := <-errCh:
				if startErr != nil {
					return startErr
				}
				return nil
			}

			const shutdownTimeout = 10 * time.Second
			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// Drain the errCh in case ListenAndServe returned after Shutdown.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}

			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&paused, "paused", false, "Do not tick on the wall clock; advance only through POST /v1/advance")
	return cmd
}
