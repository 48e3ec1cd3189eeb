package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(false)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.IsDev {
		logger = bootstrap.InitLogger(true)
	}

	logStartupInfo(ctx, logger, &cfg)

	return bootstrap.Run(ctx, &cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	attrs := []any{
		"auth_mode", cfg.Auth.Mode,
		"session_backend", cfg.Session.Backend,
		"cookie_enabled", cfg.Cookie.Enabled,
		"addr", cfg.HTTP.Addr,
	}
	if cfg.Auth.Mode == config.AuthModeLDAP {
		attrs = append(attrs, "ldap_server", cfg.LDAP.ServerPath, "ldap_domain", cfg.LDAP.Domain)
	}
	logger.InfoContext(ctx, "starting ldapauth service", attrs...)
}
