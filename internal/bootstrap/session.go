package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/adapters/memory"
	redisadapter "github.com/target/mmk-ldap-auth/internal/adapters/redis"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// SessionBackend is the configured slot backend plus its cleanup.
type SessionBackend struct {
	Backend ports.SessionBackend
	// Redis is set when the backend is redis-backed.
	Redis redis.UniversalClient
}

// Close releases the backend's connections.
func (s SessionBackend) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// BuildSessionBackend opens the session slot backend selected by SESSION_BACKEND.
func BuildSessionBackend(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (SessionBackend, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return SessionBackend{}, fmt.Errorf("connect redis: %w", err)
		}
		return SessionBackend{
			Backend: redisadapter.NewSessionStoreWithPrefix(client, cfg.Session.KeyPrefix, cfg.Session.TTL),
			Redis:   client,
		}, nil

	case config.SessionBackendMemory, "":
		logger.InfoContext(ctx, "using in-memory session backend", "ttl", cfg.Session.TTL)
		return SessionBackend{
			Backend: memory.NewSessionBackend(memory.SessionBackendOptions{TTL: cfg.Session.TTL}),
		}, nil

	default:
		return SessionBackend{}, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}
