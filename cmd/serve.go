package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the caption workflow",
		Long: `Starts the browser workflow on the specified port.

Pick or drop an image, generate its caption through the caption server and
toggle between the caption and its translation.`,
		Example: `  # Start server on default port 8888
  captioner serve

  # Use a remote caption server
  captioner serve --port 3000 --endpoint http://captions.internal:5000/caption`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			client := captionapi.NewClient(cfg.Endpoint)

			healthCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			if err := client.Health(healthCtx); err != nil {
				slog.Warn("Caption server is not reachable yet", "endpoint", cfg.Endpoint, "err", err)
			}
			cancel()

			handler := handlers.New(handlers.Options{
				Captioner:        client,
				TranslationDelay: cfg.TranslationDelay,
				SessionTTL:       cfg.UI.SessionTTL,
				Logger:           a.logger,
			})
			defer handler.Close()

			expiryCtx, stopExpiry := context.WithCancel(cmd.Context())
			defer stopExpiry()
			go handler.RunExpiry(expiryCtx, time.Minute)

			addr := ":" + cfg.UI.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Caption workflow available", "addr", addr, "url", "http://localhost"+addr, "endpoint", cfg.Endpoint)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringP("port", "p", "8888", "Port to listen on")
	cmd.Flags().String("endpoint", captionapi.DefaultEndpoint, "Caption server endpoint")
	cmd.Flags().Duration("session-ttl", 30*time.Minute, "Close browser sessions idle for this long (0 keeps them)")
	bindFlag(cmd.Flags(), "port", "ui.port")
	bindFlag(cmd.Flags(), "session-ttl", "ui.session_ttl")
	bindFlag(cmd.Flags(), "endpoint", "endpoint")

	return cmd
}
