package config

import (
	"errors"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: login flow, directory, and authorization rules
//   - session.go: session slot and identity cookie
//   - redis.go: Redis connection for the redis session backend
//   - http.go: HTTP server configuration
//   - observability.go: StatsD metrics and directory outage notifications
type AppConfig struct {
	// IsDev controls development mode behavior (insecure cookies, mock directory hints).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth    AuthConfig    `envPrefix:"AUTH_"`
	LDAP    LDAPConfig    `envPrefix:"LDAP_"`
	Authz   AuthzConfig   `envPrefix:"AUTHZ_"`
	Session SessionConfig `envPrefix:"SESSION_"`
	Cookie  CookieConfig  `envPrefix:"COOKIE_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	HTTP    HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.LDAP.Sanitize()
	c.Authz.Sanitize()
	c.Session.Sanitize()
	c.Cookie.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// Validate reports every configuration error at once.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Auth.Mode == AuthModeLDAP {
		errs = append(errs, c.LDAP.Validate())
	}
	if c.Auth.Mode == AuthModeMock && c.Auth.DevDirectoryFile == "" {
		errs = append(errs, errors.New("AUTH_DEV_DIRECTORY_FILE is required when AUTH_MODE=mock"))
	}
	errs = append(errs, c.Cookie.Validate())
	return errors.Join(errs...)
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

func splitTrim(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
