package memory

// Package memory provides a process-local session slot backend.

import (
	"context"
	"sync"
	"time"

	"github.com/thejerf/abtime"

	"github.com/target/mmk-ldap-auth/internal/ports"
)

const defaultTTL = 12 * time.Hour

// SessionBackendOptions configures a SessionBackend.
type SessionBackendOptions struct {
	// TTL is the idle lifetime of a slot; defaults to 12h.
	TTL time.Duration
	// Clock defaults to the real clock.
	Clock abtime.AbstractTime
}

// SessionBackend keeps session slots in memory. Values are held as given, without
// serialization. Slots idle for longer than the TTL are dropped.
type SessionBackend struct {
	mu        sync.Mutex
	slots     map[string]*slot
	ttl       time.Duration
	clock     abtime.AbstractTime
	lastSweep time.Time
}

type slot struct {
	values   map[string]any
	lastSeen time.Time
}

var _ ports.SessionBackend = (*SessionBackend)(nil)

// NewSessionBackend creates an empty in-memory backend.
func NewSessionBackend(opts SessionBackendOptions) *SessionBackend {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &SessionBackend{
		slots:     make(map[string]*slot),
		ttl:       ttl,
		clock:     clock,
		lastSweep: clock.Now(),
	}
}

// Open returns the slot for sessionID, creating it when missing or expired.
func (b *SessionBackend) Open(_ context.Context, sessionID string) (ports.SessionState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.sweepLocked(now)

	s, ok := b.slots[sessionID]
	if !ok || b.expired(s, now) {
		s = &slot{values: make(map[string]any)}
		b.slots[sessionID] = s
	}
	s.lastSeen = now
	return &State{backend: b, sessionID: sessionID}, nil
}

// Len returns the number of live slots.
func (b *SessionBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweepLocked(b.clock.Now())
	return len(b.slots)
}

func (b *SessionBackend) expired(s *slot, now time.Time) bool {
	return now.Sub(s.lastSeen) >= b.ttl
}

// sweepLocked drops expired slots at most once per TTL period.
func (b *SessionBackend) sweepLocked(now time.Time) {
	if now.Sub(b.lastSweep) < b.ttl {
		return
	}
	for id, s := range b.slots {
		if b.expired(s, now) {
			delete(b.slots, id)
		}
	}
	b.lastSweep = now
}

// slotLocked returns the live slot for id, or nil after expiry.
func (b *SessionBackend) slotLocked(id string) *slot {
	s, ok := b.slots[id]
	if !ok {
		return nil
	}
	now := b.clock.Now()
	if b.expired(s, now) {
		delete(b.slots, id)
		return nil
	}
	s.lastSeen = now
	return s
}

// State is a handle on one slot.
type State struct {
	backend   *SessionBackend
	sessionID string
}

var _ ports.SessionState = (*State)(nil)

func (s *State) Get(_ context.Context, key string) (any, bool, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	sl := s.backend.slotLocked(s.sessionID)
	if sl == nil {
		return nil, false, nil
	}
	v, ok := sl.values[key]
	return v, ok, nil
}

func (s *State) Set(_ context.Context, key string, value any) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	sl := s.backend.slotLocked(s.sessionID)
	if sl == nil {
		sl = &slot{values: make(map[string]any), lastSeen: s.backend.clock.Now()}
		s.backend.slots[s.sessionID] = sl
	}
	sl.values[key] = value
	return nil
}

func (s *State) Delete(_ context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if sl := s.backend.slotLocked(s.sessionID); sl != nil {
		delete(sl.values, key)
	}
	return nil
}
