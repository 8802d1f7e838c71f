package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"hotelgate/internal/backend"
	"hotelgate/internal/config"
	"hotelgate/internal/db"
	"hotelgate/internal/httpserver"
	"hotelgate/internal/logging"
	"hotelgate/internal/metrics"
	"hotelgate/internal/session"
	"hotelgate/internal/tokenstore"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := logging.New(cfg.Logging, version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	persistent, closeStore, err := openPersistent(ctx, cfg.Store, logger.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	store := tokenstore.New(persistent, tokenstore.Options{
		Secure: cfg.Cookies.Secure,
		Domain: cfg.Cookies.Domain,
		Path:   cfg.Cookies.Path,
		TTL:    cfg.Store.TTL,
	})

	client := backend.NewClient(cfg.Backend.BaseURL, &http.Client{})
	manager := session.NewManager(client, store, logger.With("component", "session").Logger, session.Options{
		RefreshEnabled: cfg.Auth.RefreshEnabled,
	})

	var uiOrigin *url.URL
	if cfg.UIOrigin != "" {
		uiOrigin, err = url.Parse(cfg.UIOrigin)
		if err != nil {
			return fmt.Errorf("parse ui_origin: %w", err)
		}
	}

	areas := httpserver.BuildAreas(cfg.Areas, cfg.Auth.SuperAdminRole, manager, m, logger.With("component", "gate").Logger)
	handler := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:      logger.Logger,
		Sessions:    manager,
		Areas:       areas,
		BackendURL:  client.BaseURL(),
		ProxyClient: &http.Client{},
		Metrics:     m,
		UIOrigin:    uiOrigin,
		CORSOrigins: cfg.HTTP.CORSAllowedOrigins,
		Version:     version,
	})
	server := httpserver.New(cfg.HTTP, handler, logger.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	return nil
}

// openPersistent builds the durable half of the token store for the
// configured driver. The returned func releases its connections.
func openPersistent(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (tokenstore.Persistent, func(), error) {
	switch cfg.Driver {
	case "none":
		return nil, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return tokenstore.NewRedisStore(rdb), func() { rdb.Close() }, nil
	case "postgres":
		conn, err := db.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		store := tokenstore.NewSQLStore(conn)
		sweepCtx, cancel := context.WithCancel(ctx)
		go sweepExpired(sweepCtx, store, sweepInterval, logger)
		return store, func() { cancel(); closeDB(conn) }, nil
	default:
		store := tokenstore.NewMemoryStore()
		sweepCtx, cancel := context.WithCancel(ctx)
		go sweepExpired(sweepCtx, store, sweepInterval, logger)
		return store, cancel, nil
	}
}

// expirySweeper is a store that only drops expired records when asked.
type expirySweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func sweepExpired(ctx context.Context, store expirySweeper, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("sweep expired sessions", "err", err)
				continue
			}
			if n > 0 {
				logger.Debug("swept expired sessions", "count", n)
			}
		}
	}
}

func closeDB(conn *sql.DB) {
	_ = conn.Close()
}
