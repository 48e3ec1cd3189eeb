package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// LoginRate is the sustained number of login posts per second allowed per client.
	LoginRate float64 `env:"HTTP_LOGIN_RATE" envDefault:"1"`
	// LoginBurst is the number of login posts a client may send at once.
	LoginBurst int `env:"HTTP_LOGIN_BURST" envDefault:"5"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `env:"HTTP_TRUST_PROXY" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.LoginRate <= 0 {
		h.LoginRate = 1
	}
	if h.LoginBurst < 1 {
		h.LoginBurst = 1
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}
