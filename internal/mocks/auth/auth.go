package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	"github.com/target/mmk-ldap-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionState   = (*MemorySessionState)(nil)
	_ ports.SessionBackend = (*MemorySessionBackend)(nil)
	_ ports.CookieJar      = (*MemoryCookieJar)(nil)
	_ ports.Challenge      = (*StaticChallenge)(nil)
)

// MemorySessionState is an in-memory session slot for unit tests. Values are stored as
// given. Set Err to make every call fail.
type MemorySessionState struct {
	mu     sync.Mutex
	values map[string]any
	Writes int
	Err    error
}

// NewMemorySessionState creates an empty slot.
func NewMemorySessionState() *MemorySessionState {
	return &MemorySessionState{values: make(map[string]any)}
}

func (m *MemorySessionState) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemorySessionState) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.values == nil {
		m.values = make(map[string]any)
	}
	m.values[key] = value
	m.Writes++
	return nil
}

func (m *MemorySessionState) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.values, key)
	m.Writes++
	return nil
}

// Peek returns a stored value without counting as a call.
func (m *MemorySessionState) Peek(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// MemorySessionBackend hands out MemorySessionState slots by session id.
type MemorySessionBackend struct {
	mu    sync.Mutex
	slots map[string]*MemorySessionState
}

// NewMemorySessionBackend creates an empty backend.
func NewMemorySessionBackend() *MemorySessionBackend {
	return &MemorySessionBackend{slots: make(map[string]*MemorySessionState)}
}

func (b *MemorySessionBackend) Open(_ context.Context, sessionID string) (ports.SessionState, error) {
	return b.Slot(sessionID), nil
}

// Slot returns the concrete slot for inspection in tests.
func (b *MemorySessionBackend) Slot(sessionID string) *MemorySessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.slots == nil {
		b.slots = make(map[string]*MemorySessionState)
	}
	s, ok := b.slots[sessionID]
	if !ok {
		s = NewMemorySessionState()
		b.slots[sessionID] = s
	}
	return s
}

// MemoryCookieJar records cookie writes for assertions.
type MemoryCookieJar struct {
	values  map[string]string
	Expires map[string]time.Time
	Deleted []string
	Sets    int
}

// NewMemoryCookieJar creates a jar seeded with request cookies.
func NewMemoryCookieJar(seed map[string]string) *MemoryCookieJar {
	j := &MemoryCookieJar{values: make(map[string]string), Expires: make(map[string]time.Time)}
	for k, v := range seed {
		j.values[k] = v
	}
	return j
}

func (j *MemoryCookieJar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *MemoryCookieJar) Set(name, value string, expires time.Time) {
	if j.values == nil {
		j.values = make(map[string]string)
		j.Expires = make(map[string]time.Time)
	}
	j.values[name] = value
	j.Expires[name] = expires
	j.Sets++
}

func (j *MemoryCookieJar) Delete(name string) {
	delete(j.values, name)
	j.Deleted = append(j.Deleted, name)
}

// StaticChallenge returns the same submission on every call.
type StaticChallenge struct {
	Sub   *ports.Submission
	Err   error
	Calls int
}

func (c *StaticChallenge) Submission(_ context.Context) (*ports.Submission, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Sub, nil
}
