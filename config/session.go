package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionBackend selects where session slots live.
type SessionBackend string

const (
	// SessionBackendMemory keeps slots in process memory.
	SessionBackendMemory SessionBackend = "memory"
	// SessionBackendRedis keeps slots in Redis hashes.
	SessionBackendRedis SessionBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionBackend.
func (b *SessionBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "memory", "redis":
		*b = SessionBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionBackend: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig controls the server-side session slot.
type SessionConfig struct {
	UserKey       string         `env:"USER_KEY"        envDefault:"login_user"`
	RememberMeKey string         `env:"REMEMBER_ME_KEY" envDefault:"login_remember_me"`
	AuthResultKey string         `env:"AUTH_RESULT_KEY" envDefault:"login_result"`
	Backend       SessionBackend `env:"BACKEND"         envDefault:"memory"`
	// TTL is the idle lifetime of a slot.
	TTL time.Duration `env:"TTL" envDefault:"12h"`
	// CookieName is the opaque cookie that keys the slot.
	CookieName string `env:"COOKIE_NAME" envDefault:"login_session"`
	KeyPrefix  string `env:"KEY_PREFIX"  envDefault:"ldapauth:session:"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.TTL <= 0 {
		c.TTL = 12 * time.Hour
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = "login_session"
	}
}

// CookieConfig controls the signed identity cookie.
type CookieConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	// Key is the HMAC signing secret. Required when Enabled.
	Key         string  `env:"KEY"`
	Name        string  `env:"NAME"         envDefault:"login_cookie"`
	ExpiryDays  float64 `env:"EXPIRY_DAYS"  envDefault:"1"`
	AutoRenewal bool    `env:"AUTO_RENEWAL" envDefault:"true"`
	Algorithm   string  `env:"ALGORITHM"    envDefault:"HS256"`
	// Domain is the cookie Domain attribute. Leave empty to use the request host.
	Domain string `env:"DOMAIN"`
}

// Sanitize applies guardrails to cookie configuration values.
func (c *CookieConfig) Sanitize() {
	if c.ExpiryDays <= 0 {
		c.ExpiryDays = 1
	}
	c.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))
	if c.Algorithm == "" {
		c.Algorithm = "HS256"
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "login_cookie"
	}
	c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
}

// Validate checks the signing settings and the cookie domain.
func (c *CookieConfig) Validate() error {
	var errs []error
	if c.Enabled && c.Key == "" {
		errs = append(errs, errors.New("COOKIE_KEY is required when COOKIE_ENABLED=true"))
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("COOKIE_ALGORITHM %q is not supported (valid options: HS256, HS384, HS512)", c.Algorithm))
	}
	if d := strings.TrimPrefix(c.Domain, "."); d != "" {
		if suffix, _ := publicsuffix.PublicSuffix(d); suffix == d {
			errs = append(errs, fmt.Errorf("COOKIE_DOMAIN %q is a public suffix", c.Domain))
		}
	}
	return errors.Join(errs...)
}
