package ldap

// Package ldap provides the directory adapter backed by an LDAP / Active Directory server.

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

const defaultDialTimeout = 5 * time.Second

// ProviderConfig holds configuration for the LDAP directory.
type ProviderConfig struct {
	// ServerURL is ldap://host[:port] or ldaps://host[:port].
	ServerURL  string
	SearchBase string
	// Attributes is the ordered attribute list requested for every entry.
	Attributes  []string
	ObjectClass string // defaults to "person"
	// UseTLS upgrades ldap:// connections with StartTLS; ldaps:// is always TLS.
	UseTLS             bool
	InsecureSkipVerify bool
	DialTimeout        time.Duration
	Schema             domainauth.AttributeSchema
	Logger             *slog.Logger
}

// Provider implements ports.Directory against a live LDAP server. It holds no
// connections; each Bind dials a fresh one.
type Provider struct {
	serverURL   string
	startTLS    bool
	tlsConfig   *tls.Config
	dialTimeout time.Duration
	searchBase  string
	objectClass string
	attributes  []string
	schema      domainauth.AttributeSchema
	logger      *slog.Logger
}

var _ ports.Directory = (*Provider)(nil)

// NewProvider creates a new LDAP directory provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}
	if cfg.SearchBase == "" {
		return nil, errors.New("search base is required")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "ldap" && scheme != "ldaps" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	schema := cfg.Schema
	if schema.LoginName == "" {
		schema = domainauth.DefaultSchema()
	}
	attrs := cfg.Attributes
	if len(attrs) == 0 {
		attrs = domainauth.DefaultAttributes()
	}
	objectClass := cfg.ObjectClass
	if objectClass == "" {
		objectClass = "person"
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		serverURL:   cfg.ServerURL,
		startTLS:    cfg.UseTLS && scheme == "ldap",
		tlsConfig:   &tls.Config{ServerName: u.Hostname(), InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in for lab directories
		dialTimeout: timeout,
		searchBase:  cfg.SearchBase,
		objectClass: objectClass,
		attributes:  requestedAttributes(attrs, schema),
		schema:      schema,
		logger:      logger.With("component", "ldap"),
	}, nil
}

// Bind dials the server and binds as loginName.
func (p *Provider) Bind(ctx context.Context, loginName, password string) (ports.DirectoryConn, error) {
	if err := abandoned(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Connection(err)
	}

	conn, err := goldap.DialURL(p.serverURL,
		goldap.DialWithDialer(&net.Dialer{Timeout: p.dialTimeout}),
		goldap.DialWithTLSConfig(p.tlsConfig),
	)
	if err != nil {
		return nil, apperrors.Connection(err)
	}
	conn.SetTimeout(p.dialTimeout)
	// Abort blocking operations when the request goes away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	if p.startTLS {
		if err = conn.StartTLS(p.tlsConfig); err != nil {
			stop()
			conn.Close()
			if aerr := abandoned(ctx); aerr != nil {
				return nil, aerr
			}
			return nil, apperrors.Connection(fmt.Errorf("start tls: %w", err))
		}
	}

	if err = conn.Bind(loginName, password); err != nil {
		stop()
		conn.Close()
		if aerr := abandoned(ctx); aerr != nil {
			return nil, aerr
		}
		return nil, classifyBindError(err)
	}

	return &Conn{provider: p, conn: conn, stop: stop}, nil
}

// abandoned returns a plain context error when the caller canceled ctx. The connection
// closed by the cancel is not a directory failure.
func abandoned(ctx context.Context) error {
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return fmt.Errorf("directory request abandoned: %w", err)
	}
	return nil
}

// classifyBindError maps a bind failure to a wrong-credentials or connection error.
// Any result code returned by the server (or the client-side empty password check)
// means the credentials were rejected.
func classifyBindError(err error) error {
	var lerr *goldap.Error
	if errors.As(err, &lerr) && lerr.ResultCode != goldap.ErrorNetwork {
		return apperrors.WrongCredentials(err)
	}
	return apperrors.Connection(err)
}

// Conn is one authenticated connection.
type Conn struct {
	provider *Provider
	conn     *goldap.Conn
	stop     func() bool
}

var _ ports.DirectoryConn = (*Conn)(nil)

// Lookup searches the subtree under the search base for key=value.
func (c *Conn) Lookup(ctx context.Context, key, value string) (*domainauth.Identity, error) {
	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		goldap.EscapeFilter(c.provider.objectClass), key, goldap.EscapeFilter(value))
	entries, err := c.search(ctx, c.provider.searchBase, goldap.ScopeWholeSubtree, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperrors.NotFoundf("no entry with %s=%s", key, value)
	}
	return c.provider.toIdentity(entries[0])
}

// LookupByDN reads the entry at dn with a base-object search.
func (c *Conn) LookupByDN(ctx context.Context, dn string) (*domainauth.Identity, error) {
	entries, err := c.search(ctx, dn, goldap.ScopeBaseObject, "(objectClass=*)", 1)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, apperrors.NotFoundf("no entry at %s", dn)
		}
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperrors.NotFoundf("no entry at %s", dn)
	}
	return c.provider.toIdentity(entries[0])
}

// LookupMany returns every entry under the search base matching filter.
func (c *Conn) LookupMany(ctx context.Context, filter ports.Filter) ([]*domainauth.Identity, error) {
	if filter.IsZero() {
		return nil, apperrors.ValidationField("filter", "filter is empty")
	}
	entries, err := c.search(ctx, c.provider.searchBase, goldap.ScopeWholeSubtree,
		c.provider.compileFilter(filter), 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperrors.NotFoundf("no entry matches %s", c.provider.compileFilter(filter))
	}

	out := make([]*domainauth.Identity, 0, len(entries))
	var errs []error
	for _, e := range entries {
		id, convErr := c.provider.toIdentity(e)
		if convErr != nil {
			errs = append(errs, convErr)
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.Join(errs...)
	}
	if len(errs) > 0 {
		c.provider.logger.Warn("skipped malformed entries", "count", len(errs), "error", errors.Join(errs...))
	}
	return out, nil
}

// Close unbinds and releases the connection.
func (c *Conn) Close() error {
	if c.stop != nil {
		c.stop()
	}
	if err := c.conn.Unbind(); err != nil && !goldap.IsErrorWithCode(err, goldap.ErrorNetwork) {
		return fmt.Errorf("unbind: %w", err)
	}
	return nil
}

func (c *Conn) search(ctx context.Context, base string, scope int, filter string, limit int) ([]*goldap.Entry, error) {
	if err := abandoned(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Connection(err)
	}
	req := goldap.NewSearchRequest(
		base, scope, goldap.NeverDerefAliases, limit, 0, false,
		filter, c.provider.attributes, nil,
	)
	res, err := c.conn.Search(req)
	if err != nil {
		if goldap.IsErrorWithCode(err, goldap.LDAPResultSizeLimitExceeded) && res != nil {
			return res.Entries, nil
		}
		if goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject) {
			return nil, err
		}
		if aerr := abandoned(ctx); aerr != nil {
			return nil, aerr
		}
		return nil, apperrors.Connection(fmt.Errorf("search %q: %w", filter, err))
	}
	return res.Entries, nil
}

// compileFilter renders f as a directory filter limited to the configured object class.
func (p *Provider) compileFilter(f ports.Filter) string {
	if f.Raw != "" {
		return fmt.Sprintf("(&(objectClass=%s)%s)", goldap.EscapeFilter(p.objectClass), f.Raw)
	}
	keys := make([]string, 0, len(f.Equals))
	for k := range f.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("(&(objectClass=")
	b.WriteString(goldap.EscapeFilter(p.objectClass))
	b.WriteString(")")
	for _, k := range keys {
		fmt.Fprintf(&b, "(%s=%s)", k, goldap.EscapeFilter(f.Equals[k]))
	}
	b.WriteString(")")
	return b.String()
}

// toIdentity flattens an entry in the configured attribute order.
func (p *Provider) toIdentity(e *goldap.Entry) (*domainauth.Identity, error) {
	var attrs domainauth.Attributes
	for _, name := range p.attributes {
		attrs.SetValues(name, e.GetEqualFoldAttributeValues(name))
	}
	return p.schema.NewIdentity(attrs, e.DN)
}

// requestedAttributes appends the schema's structural attributes to the configured list.
func requestedAttributes(configured []string, schema domainauth.AttributeSchema) []string {
	out := make([]string, 0, len(configured)+6)
	seen := make(map[string]bool, len(configured)+6)
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}
	for _, name := range configured {
		add(name)
	}
	for _, name := range []string{schema.LoginName, schema.DN, schema.Mail, schema.PrincipalName, schema.Manager, schema.Reports} {
		add(name)
	}
	return out
}
