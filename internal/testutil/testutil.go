// Package testutil holds shared helpers for package tests: a Redis probe,
// a pinned clock and identity builders.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thejerf/abtime"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
)

// TestingTB is the subset of testing.TB the helpers need.
type TestingTB interface {
	Helper()
	Skipf(format string, args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

const (
	redisProbeTimeout = 2 * time.Second
	// lockDB holds the per-DB reservations so FlushDB on a test DB keeps them.
	lockDB      = 0
	firstTestDB = 1
	lastTestDB  = 15
	lockTTL     = 30 * time.Minute
)

// redisCandidates lists where a test Redis is looked for, in order.
// REDIS_ADDR wins when set.
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// redisRequired turns a missing Redis into a failure instead of a skip.
func redisRequired() bool {
	for _, key := range []string{"TEST_REQUIRE_REDIS", "TEST_REQUIRE_INFRA"} {
		switch strings.ToLower(os.Getenv(key)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// NewManualClock returns a manual clock pinned at TestTime.
func NewManualClock() *abtime.ManualTime {
	return abtime.NewManualAtTime(TestTime())
}

// NewIdentity builds an identity with the default schema. managerDN may be empty.
// The mail attribute is derived from the login name.
func NewIdentity(login, dn, managerDN string, extra ...string) *domainauth.Identity {
	var attrs domainauth.Attributes
	attrs.SetValues("sAMAccountName", []string{login})
	attrs.SetValues("distinguishedName", []string{dn})
	attrs.SetValues("mail", []string{login + "@example.com"})
	if managerDN != "" {
		attrs.SetValues("manager", []string{managerDN})
	}
	for i := 0; i+1 < len(extra); i += 2 {
		attrs.SetValues(extra[i], []string{extra[i+1]})
	}
	id, err := domainauth.DefaultSchema().NewIdentity(attrs, dn)
	if err != nil {
		panic(fmt.Sprintf("testutil.NewIdentity: %v", err))
	}
	return id
}

// SetupTestRedis returns a client on a flushed DB reserved for the calling test.
// The test is skipped when no Redis answers, or fails when TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, err := findRedis()
	if err != nil {
		if redisRequired() {
			t.Fatalf("Redis not available for testing: %v", err)
		}
		t.Skipf("Redis not available for testing: %v", err)
		return nil
	}

	db := reserveDB(t, addr)
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	if err = client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d at %s: %v", db, addr, err)
	}
	return client
}

// findRedis returns the first candidate address that answers PING.
func findRedis() (string, error) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	var errs []error
	for _, addr := range candidates {
		if err := ping(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return addr, nil
	}
	return "", errors.Join(errs...)
}

func ping(addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// reserveDB picks the test DB: TEST_REDIS_DB when valid, otherwise the first
// index whose lock key in lockDB can be claimed, otherwise firstTestDB.
// Reservations let packages run their Redis tests in parallel.
func reserveDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			return db
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	locks := redis.NewClient(&redis.Options{Addr: addr, DB: lockDB})
	defer func() { _ = locks.Close() }()

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for db := firstTestDB; db <= lastTestDB; db++ {
		key := fmt.Sprintf("ldapauth:testutil:db_lock:%d", db)
		ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
		claimed, err := locks.SetNX(ctx, key, owner, lockTTL).Result()
		cancel()
		if err != nil || !claimed {
			continue
		}
		t.Cleanup(func() { releaseDB(addr, key) })
		return db
	}
	t.Logf("no free redis test db at %s, sharing db %d", addr, firstTestDB)
	return firstTestDB
}

func releaseDB(addr, key string) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: lockDB})
	defer func() { _ = client.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	_ = client.Del(ctx, key).Err()
}
