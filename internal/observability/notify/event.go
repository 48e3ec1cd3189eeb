// Package notify defines the directory health events sent to on-call sinks.
package notify

import (
	"context"
	"time"
)

// Severity values recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityInfo     = "info"
)

// Event kinds.
const (
	KindDirectoryOutage    = "directory_outage"
	KindDirectoryRecovered = "directory_recovered"
)

// Event describes a change in directory reachability as seen by login attempts.
type Event struct {
	Kind string
	// Server identifies the directory, e.g. the LDAP URL.
	Server string
	// Failures is the number of consecutive connection failures observed.
	Failures   int
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Resolved reports whether the event closes an earlier outage.
func (e Event) Resolved() bool { return e.Kind == KindDirectoryRecovered }

// DedupKey groups the outage and its recovery into one incident.
func (e Event) DedupKey() string { return "ldapauth:directory:" + e.Server }

// Sink delivers events to an external system.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}
