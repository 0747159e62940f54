package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/tenantkeys/internal/app"
	"github.com/allisson/tenantkeys/internal/config"
)

// service is a long-running component of the server process.
type service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// serve runs svc until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, eg *errgroup.Group, name string, svc service, timeout time.Duration) {
	eg.Go(func() error {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("%s error: %w", name, err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", name, err)
		}
		return nil
	})
}

// RunServer starts the API server, the metrics server and, when enabled, the
// rotation scheduler. It returns once SIGINT/SIGTERM arrives or any of them
// fails, after stopping the rest.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	logger.Info("starting server", slog.String("version", version))

	// Loads the KEK chain: a database without KEKs fails here.
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	serve(ctx, eg, "api server", server, cfg.DBConnMaxLifetime)
	if metricsServer != nil {
		serve(ctx, eg, "metrics server", metricsServer, cfg.DBConnMaxLifetime)
	}

	if cfg.RotationSchedulerEnabled {
		scheduler, err := container.RotationScheduler()
		if err != nil {
			stop()
			return errors.Join(fmt.Errorf("failed to initialize rotation scheduler: %w", err), eg.Wait())
		}
		eg.Go(func() error {
			if err := scheduler.Start(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	err = eg.Wait()
	if err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
	} else {
		logger.Info("server stopped")
	}
	return err
}
