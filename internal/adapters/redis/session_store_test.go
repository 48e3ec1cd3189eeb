package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestSessionStore_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client, 30*time.Minute)
	ctx := context.Background()

	slot, err := store.Open(ctx, "test-session-1")
	require.NoError(t, err)

	id := testutil.NewIdentity("jdoe", "CN=John Doe,DC=example,DC=com", "CN=Boss,DC=example,DC=com")
	require.NoError(t, slot.Set(ctx, "login_user", id))
	require.NoError(t, slot.Set(ctx, "login_remember_me", true))

	raw, ok, err := slot.Get(ctx, "login_user")
	require.NoError(t, err)
	require.True(t, ok)
	msg, isRaw := raw.(json.RawMessage)
	require.True(t, isRaw, "values come back as JSON documents")

	var decoded domainauth.Identity
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, id.LoginName, decoded.LoginName)
	assert.Equal(t, id.ManagerDN, decoded.ManagerDN)
	assert.True(t, id.Attributes.Equal(decoded.Attributes))

	ttl, err := client.TTL(ctx, defaultPrefix+"test-session-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 29*time.Minute)
}

func TestSessionStore_GetMissingField(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	slot, err := store.Open(ctx, "non-existent")
	require.NoError(t, err)

	v, ok, err := slot.Get(ctx, "login_user")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestSessionStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStoreWithPrefix(client, "test:session:", time.Minute)
	ctx := context.Background()

	slot, err := store.Open(ctx, "test-session-delete")
	require.NoError(t, err)
	require.NoError(t, slot.Set(ctx, "login_user", "x"))
	require.NoError(t, slot.Delete(ctx, "login_user"))

	_, ok, err := slot.Get(ctx, "login_user")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, "test:session:test-session-delete").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "an emptied hash disappears")
}

func TestSessionStore_OpenRequiresID(t *testing.T) {
	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), time.Minute)
	_, err := store.Open(context.Background(), "")
	assert.Error(t, err)
}

func TestSessionStore_Ping(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client, time.Minute)
	require.NoError(t, store.Ping(context.Background()))
}
