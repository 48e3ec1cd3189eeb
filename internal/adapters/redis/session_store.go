package redis

// Package redis provides Redis-based adapters for the login service.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-ldap-auth/internal/ports"
)

const (
	defaultPrefix = "ldapauth:session:"
	defaultTTL    = 12 * time.Hour
)

// SessionStore is a Redis-based session slot backend for multi-instance deployments.
// Each session is one hash keyed by prefix+id; field values are JSON documents.
// The TTL is an idle timeout refreshed on open and on every write.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.SessionBackend = (*SessionStore)(nil)

// NewSessionStore creates a new Redis-based session backend.
func NewSessionStore(client redis.UniversalClient, ttl time.Duration) *SessionStore {
	return NewSessionStoreWithPrefix(client, defaultPrefix, ttl)
}

// NewSessionStoreWithPrefix creates a Redis session backend with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Ping reports whether the Redis server answers.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Open returns a handle on the slot for sessionID. A missing hash is an empty slot.
func (s *SessionStore) Open(ctx context.Context, sessionID string) (ports.SessionState, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	key := s.prefix + sessionID
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis expire: %w", err)
	}
	return &sessionState{store: s, key: key}, nil
}

type sessionState struct {
	store *SessionStore
	key   string
}

// Get returns the stored JSON document as json.RawMessage.
func (st *sessionState) Get(ctx context.Context, field string) (any, bool, error) {
	data, err := st.store.client.HGet(ctx, st.key, field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis hget: %w", err)
	}
	return json.RawMessage(data), true, nil
}

func (st *sessionState) Set(ctx context.Context, field string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal session value %q: %w", field, err)
	}
	_, err = st.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, st.key, field, data)
		pipe.Expire(ctx, st.key, st.store.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (st *sessionState) Delete(ctx context.Context, field string) error {
	if err := st.store.client.HDel(ctx, st.key, field).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}
