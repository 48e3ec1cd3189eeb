package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-ldap-auth/config"
)

const redisPingTimeout = 5 * time.Second

// redisTarget is REDIS_URI resolved into its parts. A bare host:port keeps
// the configured password and DB.
type redisTarget struct {
	addr     string
	username string
	password string
	db       int
	tls      *tls.Config
}

func parseRedisTarget(cfg config.RedisConfig) (redisTarget, error) {
	uri := strings.TrimSpace(cfg.URI)
	target := redisTarget{addr: uri, password: cfg.Password, db: cfg.DB}
	if !strings.HasPrefix(uri, "redis://") && !strings.HasPrefix(uri, "rediss://") {
		return target, nil
	}
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return redisTarget{}, fmt.Errorf("parse redis url: %w", err)
	}
	target.addr = opt.Addr
	target.username = opt.Username
	target.db = opt.DB
	target.tls = opt.TLSConfig
	if opt.Password != "" {
		target.password = opt.Password
	}
	return target, nil
}

// ConnectRedis opens the client for the redis session backend and pings it.
// REDIS_USE_CLUSTER wins over REDIS_USE_SENTINEL; otherwise REDIS_URI is dialed directly.
//
//nolint:ireturn // the deployment picks a single, sentinel or cluster client.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	newClient := newDirectClient
	switch {
	case cfg.UseCluster:
		newClient = newClusterClient
	case cfg.UseSentinel:
		newClient = newSentinelClient
	}
	client, desc, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err = client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis %s: %w", redactAddr(desc), err), client.Close())
	}

	if logger != nil {
		logger.InfoContext(ctx, "redis connected", "addr", redactAddr(desc), "db", cfg.DB)
	}
	return client, nil
}

//nolint:ireturn // see ConnectRedis.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}
	target, err := parseRedisTarget(cfg)
	if err != nil {
		return nil, "", err
	}
	return redis.NewClient(&redis.Options{
		Addr:      target.addr,
		Username:  target.username,
		Password:  target.password,
		DB:        target.db,
		TLSConfig: target.tls,
	}), strings.TrimSpace(cfg.URI), nil
}

//nolint:ireturn // see ConnectRedis.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	nodes := nonEmpty(cfg.SentinelNodes)
	if len(nodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}
	return redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    nodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               cfg.DB,
	}), "sentinel:" + cfg.SentinelMasterName, nil
}

// newClusterClient seeds from REDIS_CLUSTER_NODES, or from REDIS_URI when no nodes are listed.
//
//nolint:ireturn // see ConnectRedis.
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{Addrs: nonEmpty(cfg.ClusterNodes), Password: cfg.Password}
	if len(opts.Addrs) == 0 && strings.TrimSpace(cfg.URI) != "" {
		target, err := parseRedisTarget(cfg)
		if err != nil {
			return nil, "", err
		}
		opts.Addrs = []string{target.addr}
		opts.Username = target.username
		opts.Password = target.password
		opts.TLSConfig = target.tls
	}
	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one address")
	}
	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

func nonEmpty(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// redactAddr strips credentials from a connection description before logging.
func redactAddr(addr string) string {
	if u, err := url.Parse(addr); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(addr, "@"); i > -1 {
		return addr[i+1:]
	}
	return addr
}
