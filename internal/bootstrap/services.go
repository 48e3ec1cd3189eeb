package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-ldap-auth/config"
)

// Run wires the login service and serves HTTP until ctx is cancelled or SIGINT/SIGTERM
// arrives, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("run: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := BuildSessionBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sessions.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close session backend failed", "error", cerr)
		}
	}()

	metricsClient, err := BuildMetrics(ctx, cfg.Observability.Metrics, logger)
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}
	defer func() {
		if cerr := metricsClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics client failed", "error", cerr)
		}
	}()

	monitor := BuildOutageMonitor(cfg, logger)
	defer monitor.Wait()

	authSvc, err := BuildAuthService(AuthDeps{Config: cfg, Metrics: metricsClient, Outage: monitor, Logger: logger})
	if err != nil {
		return fmt.Errorf("build auth service: %w", err)
	}

	server := NewHTTPServer(HTTPServerConfig{
		Config:   cfg,
		Auth:     authSvc,
		Sessions: sessions.Backend,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ServeHTTP(gctx, server, cfg.HTTP.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		waitForShutdown(gctx, cancel, logger)
		return nil
	})
	return g.Wait()
}

// waitForShutdown cancels the service context on SIGINT/SIGTERM. It returns when the
// signal arrives or ctx ends for another reason.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("shutting down services...", "signal", sig.String())
		cancel()
	case <-ctx.Done():
	}
}
