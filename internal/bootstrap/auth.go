package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/adapters/authz"
	"github.com/target/mmk-ldap-auth/internal/adapters/devauth"
	"github.com/target/mmk-ldap-auth/internal/adapters/ldap"
	"github.com/target/mmk-ldap-auth/internal/observability/statsd"
	"github.com/target/mmk-ldap-auth/internal/ports"
	"github.com/target/mmk-ldap-auth/internal/service"
	"github.com/target/mmk-ldap-auth/internal/service/outage"
)

// AuthDeps contains configuration for the auth service.
type AuthDeps struct {
	Config *config.AppConfig
	// Metrics and Outage are optional.
	Metrics statsd.Sink
	Outage  *outage.Monitor
	Logger  *slog.Logger
}

// BuildAuthService assembles the directory, the authorizer, and the cookie codec into
// an AuthService according to the configured auth mode.
func BuildAuthService(deps AuthDeps) (*service.AuthService, error) {
	if deps.Config == nil {
		return nil, errors.New("build auth service: config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir, err := BuildDirectory(cfg, logger)
	if err != nil {
		return nil, err
	}
	authorize, err := BuildAuthorizer(cfg)
	if err != nil {
		return nil, err
	}
	codec, err := BuildTokenCodec(cfg.Cookie, cfg.LDAP.Schema)
	if err != nil {
		return nil, err
	}
	var bindObserver ports.BindObserver
	if deps.Outage != nil {
		bindObserver = deps.Outage
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Directory: dir,
		Codec:     codec,
		Keys: service.SessionKeys{
			User:       cfg.Session.UserKey,
			RememberMe: cfg.Session.RememberMeKey,
			AuthResult: cfg.Session.AuthResultKey,
		},
		CookieName:              cfg.Cookie.Name,
		AutoRenewal:             cfg.Cookie.AutoRenewal,
		Domain:                  cfg.LDAP.Domain,
		Schema:                  cfg.LDAP.Schema.AttributeSchema(),
		Authorize:               authorize,
		WrongCredentialsMessage: cfg.Auth.WrongCredentialsMessage,
		NotFoundMessage:         cfg.Auth.NotFoundMessage,
		LogoutGrace:             logoutGrace(cfg.Auth),
		Metrics:                 deps.Metrics,
		BindObserver:            bindObserver,
		Logger:                  logger,
	})
}

// logoutGrace maps a configured zero to "disabled"; the service treats zero as default.
func logoutGrace(c config.AuthConfig) time.Duration {
	if c.LogoutGrace == 0 {
		return -1
	}
	return c.LogoutGrace
}

// BuildDirectory returns the live LDAP directory, or the YAML-backed dev directory in
// mock mode.
//
//nolint:ireturn // the concrete directory depends on the auth mode.
func BuildDirectory(cfg *config.AppConfig, logger *slog.Logger) (ports.Directory, error) {
	schema := cfg.LDAP.Schema.AttributeSchema()

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		entries, err := devauth.LoadFixtureFile(cfg.Auth.DevDirectoryFile)
		if err != nil {
			return nil, err
		}
		logger.Warn("using dev directory; do not enable in production",
			"fixture", cfg.Auth.DevDirectoryFile, "entries", len(entries))
		dir, err := devauth.NewProvider(devauth.Config{
			Entries:    entries,
			Domain:     cfg.LDAP.Domain,
			Attributes: cfg.LDAP.Attributes,
			Schema:     schema,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build dev directory: %w", err)
		}
		return dir, nil

	case config.AuthModeLDAP:
		dir, err := ldap.NewProvider(ldap.ProviderConfig{
			ServerURL:          cfg.LDAP.ServerPath,
			SearchBase:         cfg.LDAP.SearchBase,
			Attributes:         cfg.LDAP.Attributes,
			ObjectClass:        cfg.LDAP.ObjectClass,
			UseTLS:             cfg.LDAP.UseTLS,
			InsecureSkipVerify: cfg.LDAP.InsecureSkipVerify,
			DialTimeout:        cfg.LDAP.DialTimeout,
			Schema:             schema,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build ldap directory: %w", err)
		}
		return dir, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

// BuildAuthorizer turns the AUTHZ_ rules into the default authorizer. It returns nil
// when no rule is configured.
func BuildAuthorizer(cfg *config.AppConfig) (ports.Authorizer, error) {
	a, err := authz.Rules{
		AllowedMails:  cfg.Authz.AllowedMails,
		TitleContains: cfg.Authz.TitleContains,
		Groups:        cfg.Authz.Groups,
		ReportsToMail: cfg.Authz.ReportsToMail,
		MaxDepth:      cfg.LDAP.MaxDepth,
		Expression:    cfg.Authz.Expression,
		Reason:        cfg.Authz.DeniedMessage,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("build authorizer: %w", err)
	}
	return a, nil
}

// BuildTokenCodec returns the identity cookie codec, or nil when the cookie channel is
// disabled.
func BuildTokenCodec(c config.CookieConfig, schema config.SchemaConfig) (*service.TokenCodec, error) {
	if !c.Enabled {
		return nil, nil
	}
	codec, err := service.NewTokenCodec(service.TokenCodecOptions{
		Key:        []byte(c.Key),
		Algorithm:  c.Algorithm,
		ExpiryDays: c.ExpiryDays,
		Schema:     schema.AttributeSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("build token codec: %w", err)
	}
	return codec, nil
}
