package devauth

// Package devauth provides a fixture-driven directory for local development and tests.
// It honors the same contract and error kinds as the LDAP adapter.

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// Entry is one fixture record.
type Entry struct {
	DN         string                  `yaml:"dn"`
	Password   string                  `yaml:"password"`
	Attributes map[string]FixtureValue `yaml:"attributes"`
}

// FixtureValue accepts a YAML scalar, a sequence of scalars, or null.
type FixtureValue []string

func (v *FixtureValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = nil
			return nil
		}
		*v = FixtureValue{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*v = list
		return nil
	default:
		return fmt.Errorf("line %d: attribute must be a string or a list of strings", node.Line)
	}
}

type fixture struct {
	Entries []Entry `yaml:"entries"`
}

// LoadFixture decodes a YAML fixture of the form {entries: [{dn, password, attributes}]}.
func LoadFixture(r io.Reader) ([]Entry, error) {
	var f fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode directory fixture: %w", err)
	}
	return f.Entries, nil
}

// LoadFixtureFile reads a fixture from path.
func LoadFixtureFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory fixture: %w", err)
	}
	defer f.Close()
	return LoadFixture(f)
}

// Config controls the dev directory behavior.
type Config struct {
	Entries []Entry
	// Domain, when set, must match the DOMAIN part of DOMAIN\name logins (case-insensitive).
	Domain     string
	Attributes []string
	Schema     domainauth.AttributeSchema
	Logger     *slog.Logger
}

// Provider implements ports.Directory over fixture entries.
type Provider struct {
	records    []record
	domain     string
	attributes []string
	schema     domainauth.AttributeSchema
	logger     *slog.Logger
}

type record struct {
	dn       string
	password string
	attrs    map[string][]string // keys lower-cased
}

var _ ports.Directory = (*Provider)(nil)

// NewProvider constructs a dev directory from Config.
func NewProvider(cfg Config) (*Provider, error) {
	schema := cfg.Schema
	if schema.LoginName == "" {
		schema = domainauth.DefaultSchema()
	}
	attrs := cfg.Attributes
	if len(attrs) == 0 {
		attrs = domainauth.DefaultAttributes()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		domain:     cfg.Domain,
		attributes: attrs,
		schema:     schema,
		logger:     logger.With("component", "devauth"),
	}
	seen := make(map[string]bool, len(cfg.Entries))
	for i, e := range cfg.Entries {
		if e.DN == "" {
			return nil, fmt.Errorf("dev directory: entry %d has no dn", i)
		}
		key := strings.ToLower(e.DN)
		if seen[key] {
			return nil, fmt.Errorf("dev directory: duplicate dn %q", e.DN)
		}
		seen[key] = true

		rec := record{dn: e.DN, password: e.Password, attrs: make(map[string][]string, len(e.Attributes))}
		for name, v := range e.Attributes {
			rec.attrs[strings.ToLower(name)] = []string(v)
		}
		if _, ok := rec.attrs[strings.ToLower(schema.LoginName)]; !ok {
			return nil, fmt.Errorf("dev directory: entry %q has no %s", e.DN, schema.LoginName)
		}
		p.records = append(p.records, rec)
	}
	return p, nil
}

// Bind accepts DOMAIN\name, a principal name, a mail address, or a DN.
func (p *Provider) Bind(ctx context.Context, loginName, password string) (ports.DirectoryConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Connection(err)
	}
	if password == "" {
		return nil, apperrors.WrongCredentials(errors.New("empty password"))
	}
	rec, ok := p.findBindTarget(loginName)
	if !ok || subtle.ConstantTimeCompare([]byte(rec.password), []byte(password)) != 1 {
		p.logger.Debug("dev bind rejected", "login", loginName)
		return nil, apperrors.WrongCredentials(errors.New("invalid credentials"))
	}
	return &Conn{provider: p}, nil
}

func (p *Provider) findBindTarget(loginName string) (record, bool) {
	if domain, name, ok := strings.Cut(loginName, `\`); ok {
		if p.domain != "" && !strings.EqualFold(domain, p.domain) {
			return record{}, false
		}
		return p.find(p.schema.LoginName, name)
	}
	for _, key := range []string{p.schema.PrincipalName, p.schema.Mail, p.schema.LoginName} {
		if rec, ok := p.find(key, loginName); ok {
			return rec, true
		}
	}
	for _, rec := range p.records {
		if strings.EqualFold(rec.dn, loginName) {
			return rec, true
		}
	}
	return record{}, false
}

func (p *Provider) find(key, value string) (record, bool) {
	if key == "" {
		return record{}, false
	}
	for _, rec := range p.records {
		if rec.matches(key, value) {
			return rec, true
		}
	}
	return record{}, false
}

func (r record) matches(key, value string) bool {
	for _, v := range r.attrs[strings.ToLower(key)] {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

func (p *Provider) toIdentity(rec record) (*domainauth.Identity, error) {
	var attrs domainauth.Attributes
	for _, name := range p.attributes {
		attrs.SetValues(name, rec.attrs[strings.ToLower(name)])
	}
	return p.schema.NewIdentity(attrs, rec.dn)
}

// Conn is a bound dev connection.
type Conn struct {
	provider *Provider
	closed   bool
}

var _ ports.DirectoryConn = (*Conn)(nil)

var errClosed = errors.New("connection closed")

func (c *Conn) Lookup(ctx context.Context, key, value string) (*domainauth.Identity, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	rec, ok := c.provider.find(key, value)
	if !ok {
		return nil, apperrors.NotFoundf("no entry with %s=%s", key, value)
	}
	return c.provider.toIdentity(rec)
}

func (c *Conn) LookupByDN(ctx context.Context, dn string) (*domainauth.Identity, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	for _, rec := range c.provider.records {
		if strings.EqualFold(rec.dn, dn) {
			return c.provider.toIdentity(rec)
		}
	}
	return nil, apperrors.NotFoundf("no entry at %s", dn)
}

// LookupMany supports equality filters only.
func (c *Conn) LookupMany(ctx context.Context, filter ports.Filter) ([]*domainauth.Identity, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	if filter.Raw != "" {
		return nil, apperrors.ValidationField("filter", "raw filters are not supported by the dev directory")
	}
	if filter.IsZero() {
		return nil, apperrors.ValidationField("filter", "filter is empty")
	}

	keys := make([]string, 0, len(filter.Equals))
	for k := range filter.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*domainauth.Identity
	for _, rec := range c.provider.records {
		all := true
		for _, k := range keys {
			if !rec.matches(k, filter.Equals[k]) {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		id, err := c.provider.toIdentity(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, apperrors.NotFoundf("no entry matches %v", filter.Equals)
	}
	return out, nil
}

func (c *Conn) Close() error {
	c.closed = true
	return nil
}

func (c *Conn) check(ctx context.Context) error {
	if c.closed {
		return apperrors.Connection(errClosed)
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Connection(err)
	}
	return nil
}
