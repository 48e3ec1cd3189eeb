package httpx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/target/mmk-ldap-auth/internal/adapters/memory"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		method   string
		wantBody string
	}{
		{method: http.MethodGet, wantBody: `{"status":"ok"}`},
		{method: http.MethodHead, wantBody: ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		healthHandler(rec, httptest.NewRequest(tt.method, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.method, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("%s: content-type = %q", tt.method, ct)
		}
		if rec.Body.String() != tt.wantBody {
			t.Fatalf("%s: body = %q, want %q", tt.method, rec.Body.String(), tt.wantBody)
		}
	}
}

func TestReadyHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name    string
		backend any
		want    int
	}{
		{name: "in-memory backend", backend: memory.NewSessionBackend(memory.SessionBackendOptions{}), want: http.StatusOK},
		{name: "remote store up", backend: stubPinger{}, want: http.StatusOK},
		{name: "remote store down", backend: stubPinger{err: errors.New("connection refused")}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			readyHandler(tt.backend, logger)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if strings.Contains(rec.Body.String(), "connection refused") {
				t.Fatalf("backend error leaked into response: %s", rec.Body.String())
			}
		})
	}
}
