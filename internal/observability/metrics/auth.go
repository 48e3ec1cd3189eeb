// Package metrics names the login metrics and their tags.
package metrics

import (
	"time"

	obserrors "github.com/target/mmk-ldap-auth/internal/observability/errors"
	"github.com/target/mmk-ldap-auth/internal/observability/statsd"
)

// Login attempt outcomes.
const (
	OutcomeAuthenticated    = "authenticated"
	OutcomeWrongCredentials = "wrong_credentials"
	OutcomeNotFound         = "not_found"
	OutcomeDenied           = "denied"
	OutcomeError            = "error"
)

// Restore sources.
const (
	SourceSession = "session"
	SourceCookie  = "cookie"
)

// LoginMetric describes one credential submission.
type LoginMetric struct {
	Outcome  string
	Duration time.Duration
	Err      error
}

// EmitLoginAttempt counts a submission and, when timed, records its latency.
func EmitLoginAttempt(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"outcome": in.Outcome}
	if in.Err != nil {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count("auth.login", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.login.duration", in.Duration, map[string]string{"outcome": in.Outcome})
	}
}

// EmitRestore counts an identity restored without credentials.
func EmitRestore(sink statsd.Sink, source string) {
	if sink == nil {
		return
	}
	sink.Count("auth.restore", 1, map[string]string{"source": source})
}

// EmitRestoreRejected counts a stored identity the authorizer no longer accepts.
func EmitRestoreRejected(sink statsd.Sink, source string) {
	if sink == nil {
		return
	}
	sink.Count("auth.restore.rejected", 1, map[string]string{"source": source})
}

// EmitLogout counts a logout.
func EmitLogout(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("auth.logout", 1, nil)
}
