// Command goaccounts-server exposes a goAccounts engine over JSON HTTP.
//
// Engine settings come from GOACCOUNTS_* variables (see goAccounts.ConfigFromEnv).
// Server settings use the SERVER_ prefix:
//
//	SERVER_ADDR          listen address (default :8080)
//	SERVER_STORE         memory, redis or postgres (default memory)
//	SERVER_REDIS_ADDR    redis address for the redis store
//	SERVER_REDIS_PREFIX  key prefix for the redis store (default acc)
//	SERVER_DATABASE_URL  postgres DSN; migrations run on startup
//	SERVER_LOG_FORMAT    json or text (default json)
//	SERVER_LOG_LEVEL     debug, info, warn or error (default info)
//
// Run against the in-memory store:
//
//	GOACCOUNTS_JWT_PRIVATE_KEY=change-me-to-32-bytes-of-secret! go run ./cmd/goaccounts-server
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	goAccounts "github.com/MrEthical07/goAccounts"
	promexport "github.com/MrEthical07/goAccounts/metrics/export/prometheus"
	"github.com/MrEthical07/goAccounts/store/memory"
	"github.com/MrEthical07/goAccounts/store/postgres"
	"github.com/MrEthical07/goAccounts/store/redisstore"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 15 * time.Second
	storeOpenTimeout  = 10 * time.Second
)

type serverConfig struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	Store       string `env:"STORE" envDefault:"memory"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"acc"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "goaccounts-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var srv serverConfig
	if err := env.ParseWithOptions(&srv, env.Options{Prefix: "SERVER_"}); err != nil {
		return fmt.Errorf("parse server env: %w", err)
	}
	logger, err := newLogger(srv.LogFormat, srv.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := goAccounts.ConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, closeStore, err := openStore(ctx, srv, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := goAccounts.New().
		WithConfig(cfg).
		WithAdapter(adapter).
		WithNotifier(logNotifier{logger: logger}).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	var metrics http.Handler
	if cfg.Metrics.Enabled {
		metrics = promexport.NewCollector(engine).Handler()
	}

	httpServer := &http.Server{
		Addr:              srv.Addr,
		Handler:           newRouter(engine, logger, metrics),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "store", srv.Store)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(format, level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

func openStore(ctx context.Context, srv serverConfig, logger *slog.Logger) (goAccounts.Adapter, func(), error) {
	switch srv.Store {
	case "memory":
		logger.Warn("using in-memory store; accounts are lost on restart")
		return memory.New(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: srv.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, storeOpenTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.New(client, srv.RedisPrefix), func() { _ = client.Close() }, nil

	case "postgres":
		if srv.DatabaseURL == "" {
			return nil, nil, errors.New("SERVER_DATABASE_URL is required for the postgres store")
		}
		if err := migrateUp(srv.DatabaseURL, logger); err != nil {
			return nil, nil, err
		}
		openCtx, cancel := context.WithTimeout(ctx, storeOpenTimeout)
		defer cancel()
		store, closePool, err := postgres.Open(openCtx, srv.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, closePool, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store %q", srv.Store)
	}
}

func migrateUp(databaseURL string, logger *slog.Logger) (err error) {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, m.Close())
	}()

	if err := m.Up(); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("schema migrated", "version", version, "dirty", dirty)
	return nil
}
