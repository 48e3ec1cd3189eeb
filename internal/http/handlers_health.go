package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse   = `{"status":"ok"}`
	readyPingTimeout = 2 * time.Second
)

// pinger is implemented by session backends that depend on a remote store.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports process liveness for GET and HEAD.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, healthResponse)
}

// readyHandler answers 200 once the session backend is reachable.
// Backends without a remote store are always ready.
func readyHandler(backend any, logger *slog.Logger) http.HandlerFunc {
	p, remote := backend.(pinger)
	return func(w http.ResponseWriter, r *http.Request) {
		if !remote {
			healthHandler(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "session backend not ready", "error", err)
			writeAPIError(w, http.StatusServiceUnavailable, errCodeNotReady)
			return
		}
		healthHandler(w, r)
	}
}
