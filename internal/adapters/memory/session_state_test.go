package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
)

func newBackend(ttl time.Duration) (*SessionBackend, *abtime.ManualTime) {
	clock := abtime.NewManual()
	return NewSessionBackend(SessionBackendOptions{TTL: ttl, Clock: clock}), clock
}

func TestSessionBackend_SlotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(time.Hour)

	a, err := b.Open(ctx, "a")
	require.NoError(t, err)
	other, err := b.Open(ctx, "b")
	require.NoError(t, err)

	type user struct{ Name string }
	u := &user{Name: "jdoe"}
	require.NoError(t, a.Set(ctx, "login_user", u))

	v, ok, err := a.Get(ctx, "login_user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, u, v, "values are held without serialization")

	_, ok, err = other.Get(ctx, "login_user")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := b.Open(ctx, "a")
	require.NoError(t, err)
	_, ok, _ = again.Get(ctx, "login_user")
	assert.True(t, ok, "reopening a slot keeps its values")
}

func TestSessionBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(time.Hour)
	s, _ := b.Open(ctx, "a")

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, "missing"))
}

func TestSessionBackend_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	b, clock := newBackend(time.Hour)

	s, _ := b.Open(ctx, "a")
	require.NoError(t, s.Set(ctx, "k", "v"))

	clock.Advance(59 * time.Minute)
	_, ok, _ := s.Get(ctx, "k")
	require.True(t, ok, "activity refreshes the idle timer")

	clock.Advance(59 * time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	require.True(t, ok)

	clock.Advance(time.Hour)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "idle slots expire")

	fresh, _ := b.Open(ctx, "a")
	_, ok, _ = fresh.Get(ctx, "k")
	assert.False(t, ok)
}

func TestSessionBackend_SweepsExpiredSlots(t *testing.T) {
	ctx := context.Background()
	b, clock := newBackend(time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		_, err := b.Open(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, b.Len())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, b.Len())
}

func TestSessionBackend_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	b := NewSessionBackend(SessionBackendOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := b.Open(ctx, "shared")
			if err != nil {
				return
			}
			for j := 0; j < 100; j++ {
				_ = s.Set(ctx, "counter", i*j)
				_, _, _ = s.Get(ctx, "counter")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, b.Len())
}
