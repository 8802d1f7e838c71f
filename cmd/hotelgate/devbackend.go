package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hotelgate/internal/config"
	"hotelgate/internal/devbackend"
	"hotelgate/internal/logging"
)

var devBackendCmd = &cobra.Command{
	Use:   "devbackend",
	Short: "Run an in-memory stand-in for the backend auth API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Logging, version).With("component", "devbackend")

		store := devbackend.NewStore()
		if err := store.SeedFromFile(cfg.DevBackend.UsersPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("seed users: %w", err)
			}
			logger.Warn("no users file, starting empty", "path", cfg.DevBackend.UsersPath)
		}
		svc := devbackend.NewService(store, devbackend.Options{
			Secret:     cfg.DevBackend.JWTSecret,
			TokenTTL:   cfg.DevBackend.TokenTTL,
			RefreshTTL: cfg.DevBackend.RefreshTTL,
		})

		srv := &http.Server{
			Addr:              cfg.DevBackend.Addr,
			Handler:           devbackend.NewHandler(svc, logger.Logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("dev backend listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}
