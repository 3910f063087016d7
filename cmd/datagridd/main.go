// Command datagridd serves the datagrid admin panel API.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nlstn/go-datagrid"
	"github.com/nlstn/go-datagrid/internal/config"
	"github.com/nlstn/go-datagrid/internal/kvstore"
	"github.com/nlstn/go-datagrid/internal/observability"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "datagridd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	obsOpts := []observability.Option{
		observability.WithTracerProvider(otel.GetTracerProvider()),
		observability.WithMeterProvider(otel.GetMeterProvider()),
		observability.WithServiceName(cfg.ServiceName),
		observability.WithServiceVersion(version),
	}
	if cfg.ServerTiming {
		obsOpts = append(obsOpts, observability.WithServerTiming())
	}
	if cfg.DBTracing {
		obsOpts = append(obsOpts, observability.WithDetailedDBTracing())
	}
	obs := observability.NewConfig(obsOpts...)

	db, err := kvstore.Open(cfg.DBDriver, cfg.DBDSN, nil)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := observability.RegisterGORMCallbacks(db, obs); err != nil {
		return fmt.Errorf("register db tracing: %w", err)
	}
	if cfg.ServerTiming {
		if err := observability.RegisterServerTimingCallbacks(db); err != nil {
			return fmt.Errorf("register db timing: %w", err)
		}
	}
	sessions, err := kvstore.NewGORM(db)
	if err != nil {
		return err
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		logger.Warn("DATAGRID_JWT_SECRET is not set; sessions will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate signing secret: %w", err)
		}
	}

	service, err := datagrid.NewServiceWithConfig(datagrid.ServiceConfig{
		AdminEmail:     cfg.AdminEmail,
		AdminPassword:  cfg.AdminPassword,
		Secret:         secret,
		SessionTTL:     cfg.SessionTTL,
		SessionStore:   sessions,
		SampleSize:     cfg.SampleSize,
		PageSize:       cfg.PageSize,
		RefreshLatency: refreshLatency(cfg),
		Observability:  obs,
	})
	if err != nil {
		return err
	}
	service.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := service.NewServer(cfg.Addr)
	server.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelError)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "db", cfg.DBDriver, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SessionSweep)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := service.SweepSessions(gctx); n > 0 {
					logger.Debug("released expired sessions", "count", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

// refreshLatency maps a configured zero latency to "no delay"; the service
// treats zero as unset.
func refreshLatency(cfg config.Config) time.Duration {
	if cfg.RefreshLatency == 0 {
		return -1
	}
	return cfg.RefreshLatency
}
