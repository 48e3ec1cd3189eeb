// Package outage watches bind results and notifies on-call sinks when the directory
// stops answering and again when it comes back.
package outage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/abtime"

	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	obserrors "github.com/target/mmk-ldap-auth/internal/observability/errors"
	"github.com/target/mmk-ldap-auth/internal/observability/notify"
)

const (
	defaultThreshold       = 5
	defaultCooldown        = 15 * time.Minute
	defaultDeliveryTimeout = 30 * time.Second
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the Monitor.
type Options struct {
	// Server names the directory in notifications.
	Server string
	// Threshold is the number of consecutive connection failures that opens an outage.
	Threshold int
	// Cooldown is the minimum interval between repeated outage notifications.
	Cooldown time.Duration
	Metadata map[string]string
	Sinks    []SinkRegistration
	Clock    abtime.AbstractTime
	Logger   *slog.Logger
}

// Monitor counts consecutive directory connection failures. Wrong credentials and
// successful binds both prove the directory is reachable and close an open outage.
// A nil *Monitor ignores every observation.
type Monitor struct {
	server    string
	threshold int
	cooldown  time.Duration
	metadata  map[string]string
	sinks     []SinkRegistration
	clock     abtime.AbstractTime
	logger    *slog.Logger

	mu        sync.Mutex
	failures  int
	open      bool
	lastAlert time.Time

	inflight sync.WaitGroup
}

// NewMonitor constructs a Monitor. Sinks without an implementation are dropped.
func NewMonitor(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	clock := opts.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Monitor{
		server:    opts.Server,
		threshold: threshold,
		cooldown:  cooldown,
		metadata:  opts.Metadata,
		sinks:     sinks,
		clock:     clock,
		logger:    logger.With("component", "outage_monitor"),
	}
}

// Enabled reports whether the monitor has any active sinks.
func (m *Monitor) Enabled() bool {
	return m != nil && len(m.sinks) > 0
}

// ObserveBind records the outcome of one bind. Notifications are delivered in the
// background so a login never waits on a webhook. A bind abandoned by the caller
// neither counts toward nor resets the failure streak.
func (m *Monitor) ObserveBind(ctx context.Context, err error) {
	if !m.Enabled() || errors.Is(err, context.Canceled) {
		return
	}
	event, ok := m.record(err)
	if !ok {
		return
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDeliveryTimeout)
		defer cancel()
		m.dispatch(dctx, event)
	}()
}

// Wait blocks until in-flight notifications are delivered.
func (m *Monitor) Wait() {
	if m == nil {
		return
	}
	m.inflight.Wait()
}

// record updates the failure streak and returns the event to send, if any.
func (m *Monitor) record(err error) (notify.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if err == nil || !apperrors.IsConnection(err) {
		wasOpen := m.open
		m.failures, m.open = 0, false
		if !wasOpen {
			return notify.Event{}, false
		}
		return m.event(notify.KindDirectoryRecovered, notify.SeverityInfo, nil, now), true
	}

	m.failures++
	if m.failures < m.threshold {
		return notify.Event{}, false
	}
	if m.open && now.Sub(m.lastAlert) < m.cooldown {
		return notify.Event{}, false
	}
	m.open, m.lastAlert = true, now
	return m.event(notify.KindDirectoryOutage, notify.SeverityCritical, err, now), true
}

func (m *Monitor) event(kind, severity string, err error, now time.Time) notify.Event {
	e := notify.Event{
		Kind:       kind,
		Server:     m.server,
		Failures:   m.failures,
		Severity:   severity,
		OccurredAt: now,
		Metadata:   m.metadata,
	}
	if err != nil {
		e.Error = err.Error()
		e.ErrorClass = obserrors.Classify(err)
	}
	return e
}

// dispatch fans the event out to every sink and waits for all of them.
func (m *Monitor) dispatch(ctx context.Context, event notify.Event) {
	m.logger.WarnContext(ctx, "directory health changed",
		"kind", event.Kind,
		"server", event.Server,
		"failures", event.Failures,
	)
	var wg sync.WaitGroup
	for _, entry := range m.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.Send(ctx, event); err != nil {
				m.logger.ErrorContext(ctx, "outage notification delivery failed",
					"sink", entry.Name,
					"kind", event.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}
