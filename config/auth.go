package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
)

// AuthMode represents the directory backend used for binds.
type AuthMode string

const (
	// AuthModeLDAP binds against a live LDAP / Active Directory server.
	AuthModeLDAP AuthMode = "ldap"
	// AuthModeMock binds against a YAML fixture (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "ldap", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: ldap, mock)", v)
	}
}

// AuthConfig controls the login flow.
type AuthConfig struct {
	// Mode determines which directory backend to use.
	Mode AuthMode `env:"MODE" envDefault:"ldap"`

	// User-facing messages.
	WrongCredentialsMessage string `env:"WRONG_CREDENTIALS_MESSAGE" envDefault:"Wrong username or password."`
	NotFoundMessage         string `env:"NOT_FOUND_MESSAGE"         envDefault:"No information found for the user."`

	// LogoutGrace is the pause after logout so the cookie deletion reaches the client.
	LogoutGrace time.Duration `env:"LOGOUT_GRACE" envDefault:"100ms"`

	// DevDirectoryFile is the YAML fixture used when Mode=mock.
	DevDirectoryFile string `env:"DEV_DIRECTORY_FILE"`
}

// Sanitize applies guardrails to auth configuration values.
func (c *AuthConfig) Sanitize() {
	if c.LogoutGrace < 0 {
		c.LogoutGrace = 0
	}
	if c.LogoutGrace > 5*time.Second {
		c.LogoutGrace = 5 * time.Second
	}
	c.DevDirectoryFile = strings.TrimSpace(c.DevDirectoryFile)
}

// LDAPConfig contains directory connection settings.
type LDAPConfig struct {
	// ServerPath is ldap://host[:port] or ldaps://host[:port].
	ServerPath string   `env:"SERVER_PATH"`
	// Domain qualifies bare login names (DOMAIN\name).
	Domain     string   `env:"DOMAIN"`
	SearchBase string   `env:"SEARCH_BASE"`
	Attributes []string `env:"ATTRIBUTES" envDefault:"sAMAccountName,employeeNumber,displayName,givenName,title,mail,userPrincipalName,distinguishedName,manager,directReports" envSeparator:","`

	// UseTLS upgrades ldap:// with StartTLS; ldaps:// is always TLS.
	UseTLS             bool          `env:"USE_TLS"              envDefault:"true"`
	InsecureSkipVerify bool          `env:"INSECURE_SKIP_VERIFY" envDefault:"false"`
	DialTimeout        time.Duration `env:"DIAL_TIMEOUT"         envDefault:"5s"`
	ObjectClass        string        `env:"OBJECT_CLASS"         envDefault:"person"`
	// MaxDepth bounds manager-chain walks.
	MaxDepth int `env:"MAX_DEPTH" envDefault:"3"`

	Schema SchemaConfig `envPrefix:"SCHEMA_"`
}

// SchemaConfig names the attributes that carry identity structure.
type SchemaConfig struct {
	LoginName     string `env:"LOGIN_NAME"     envDefault:"sAMAccountName"`
	DN            string `env:"DN"             envDefault:"distinguishedName"`
	Mail          string `env:"MAIL"           envDefault:"mail"`
	PrincipalName string `env:"PRINCIPAL_NAME" envDefault:"userPrincipalName"`
	Manager       string `env:"MANAGER"        envDefault:"manager"`
	Reports       string `env:"REPORTS"        envDefault:"directReports"`
}

// AttributeSchema converts the configured names, falling back to the defaults for
// any left empty.
func (s SchemaConfig) AttributeSchema() domainauth.AttributeSchema {
	d := domainauth.DefaultSchema()
	pick := func(v, def string) string {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return def
	}
	return domainauth.AttributeSchema{
		LoginName:     pick(s.LoginName, d.LoginName),
		DN:            pick(s.DN, d.DN),
		Mail:          pick(s.Mail, d.Mail),
		PrincipalName: pick(s.PrincipalName, d.PrincipalName),
		Manager:       pick(s.Manager, d.Manager),
		Reports:       pick(s.Reports, d.Reports),
	}
}

// Sanitize applies guardrails to directory configuration values.
func (c *LDAPConfig) Sanitize() {
	c.ServerPath = strings.TrimSpace(c.ServerPath)
	c.Domain = strings.TrimSpace(c.Domain)
	c.SearchBase = strings.TrimSpace(c.SearchBase)
	c.Attributes = splitTrim(c.Attributes)
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.MaxDepth < 1 {
		c.MaxDepth = domainauth.DefaultMaxDepth
	}
	if strings.TrimSpace(c.ObjectClass) == "" {
		c.ObjectClass = "person"
	}
}

// Validate checks the settings required to reach the directory.
func (c *LDAPConfig) Validate() error {
	var errs []error
	if c.ServerPath == "" {
		errs = append(errs, errors.New("LDAP_SERVER_PATH is required"))
	} else if u, err := url.Parse(c.ServerPath); err != nil || (u.Scheme != "ldap" && u.Scheme != "ldaps") {
		errs = append(errs, fmt.Errorf("LDAP_SERVER_PATH %q must be an ldap:// or ldaps:// URL", c.ServerPath))
	}
	if c.Domain == "" {
		errs = append(errs, errors.New("LDAP_DOMAIN is required"))
	}
	if c.SearchBase == "" {
		errs = append(errs, errors.New("LDAP_SEARCH_BASE is required"))
	}
	return errors.Join(errs...)
}

// AuthzConfig declares the authorization rules applied after a successful bind and on
// every session or cookie restore. Configured rules are combined with logical AND.
type AuthzConfig struct {
	AllowedMails  []string `env:"ALLOWED_MAILS"  envSeparator:","`
	TitleContains string   `env:"TITLE_CONTAINS"`
	Groups        []string `env:"GROUPS"         envSeparator:";"`
	ReportsToMail string   `env:"REPORTS_TO_MAIL"`
	// Expression is a JMESPath expression over {"user": {...}, "managers": [...]}.
	Expression    string `env:"EXPRESSION"`
	DeniedMessage string `env:"DENIED_MESSAGE"`
}

// Sanitize trims rule values.
func (c *AuthzConfig) Sanitize() {
	c.AllowedMails = splitTrim(c.AllowedMails)
	c.Groups = splitTrim(c.Groups)
	c.TitleContains = strings.TrimSpace(c.TitleContains)
	c.ReportsToMail = strings.TrimSpace(c.ReportsToMail)
	c.Expression = strings.TrimSpace(c.Expression)
}
