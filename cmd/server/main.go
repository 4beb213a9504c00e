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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/VishnuMK2006/invent-consolt/internal/cache"
	"github.com/VishnuMK2006/invent-consolt/internal/config"
	"github.com/VishnuMK2006/invent-consolt/internal/httpapi"
	"github.com/VishnuMK2006/invent-consolt/internal/logger"
	"github.com/VishnuMK2006/invent-consolt/internal/metrics"
	"github.com/VishnuMK2006/invent-consolt/internal/migrate"
	"github.com/VishnuMK2006/invent-consolt/internal/service"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
	"github.com/VishnuMK2006/invent-consolt/internal/store/memory"
	"github.com/VishnuMK2006/invent-consolt/internal/store/postgres"
	"github.com/VishnuMK2006/invent-consolt/internal/store/rediscounter"
)

const serviceName = "invent-api"

func main() {
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config load failed", err, nil)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logg.Error(context.Background(), "invalid configuration", err, nil)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	ctx := logger.WithFields(context.Background(), map[string]any{"env": cfg.Env})

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := buildApp(startCtx, cfg, logg)
	cancel()
	if err != nil {
		logg.Error(ctx, "startup failed", err, nil)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logg.Info(ctx, "server listening", map[string]any{"addr": cfg.Address()})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "server error", err, nil)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "shutdown error", err, nil)
	}
	if err := a.close(); err != nil {
		logg.Error(ctx, "close error", err, nil)
	}
	logg.Info(ctx, "server stopped", nil)
}

type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

// buildApp wires storage, cache, counters and metrics from cfg. Resources
// opened before a failure are closed before returning.
func buildApp(ctx context.Context, cfg config.Config, logg *logger.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.close())
			a = nil
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var repo store.Repository
	if cfg.DB.URL != "" {
		pg, err := postgres.New(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if cfg.DB.AutoMigrate {
			if err := migrate.Run(ctx, pg.DB(), "up"); err != nil {
				return nil, err
			}
		}
		repo = pg
		logg.Info(ctx, "repository ready", map[string]any{"backend": "postgres"})
	} else {
		if cfg.SeedDemoData {
			repo = memory.NewSeeded(cfg.BarcodePrefix)
		} else {
			repo = memory.New()
		}
		logg.Info(ctx, "repository ready", map[string]any{"backend": "memory", "seeded": cfg.SeedDemoData})
	}

	opts := service.Options{
		BarcodePrefix: cfg.BarcodePrefix,
		CacheTTL:      cfg.ProductCacheTTL,
		Metrics:       m,
		Logger:        logg,
	}

	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.CounterBackend == config.CounterBackendRedis {
				return nil, fmt.Errorf("redis counter backend unavailable: %w", err)
			}
			logg.Warn(ctx, "redis unavailable, using noop product cache", err, nil)
		} else {
			a.closers = append(a.closers, client.Close)
			opts.Cache = cache.NewRedisProductCache(client)
			if cfg.CounterBackend == config.CounterBackendRedis {
				opts.Counters = rediscounter.New(client)
			}
			logg.Info(ctx, "redis ready", map[string]any{"counters": cfg.CounterBackend})
		}
	}

	svc := service.New(repo, opts)
	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logg,
		Metrics:       m,
		Gatherer:      reg,
	})
	a.handler = api.Handler()
	return a, nil
}
