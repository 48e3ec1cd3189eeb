package devauth

import (
	"context"
	"errors"
	"strings"
	"testing"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

func newFixtureProvider(t *testing.T) *Provider {
	t.Helper()
	entries, err := LoadFixtureFile("testdata/directory.yaml")
	if err != nil {
		t.Fatalf("LoadFixtureFile error: %v", err)
	}
	prov, err := NewProvider(Config{Entries: entries, Domain: "EXAMPLE"})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return prov
}

func TestProvider_BindForms(t *testing.T) {
	prov := newFixtureProvider(t)
	ctx := context.Background()

	for _, login := range []string{`EXAMPLE\jdev`, `example\JDEV`, "jdev@corp.example.com", "jdev@example.com", "CN=Jo Dev,OU=Users,DC=example,DC=com"} {
		conn, err := prov.Bind(ctx, login, "dev-pass")
		if err != nil {
			t.Fatalf("Bind(%q) error: %v", login, err)
		}
		_ = conn.Close()
	}
}

func TestProvider_BindRejections(t *testing.T) {
	prov := newFixtureProvider(t)
	ctx := context.Background()

	cases := map[string][2]string{
		"wrong password": {`EXAMPLE\jdev`, "nope"},
		"empty password": {`EXAMPLE\jdev`, ""},
		"unknown user":   {`EXAMPLE\ghost`, "dev-pass"},
		"other domain":   {`OTHER\jdev`, "dev-pass"},
	}
	for name, c := range cases {
		_, err := prov.Bind(ctx, c[0], c[1])
		if !errors.Is(err, apperrors.ErrWrongCredentials) {
			t.Fatalf("%s: expected wrong credentials, got %v", name, err)
		}
	}
}

func TestConn_LookupAndCollapse(t *testing.T) {
	prov := newFixtureProvider(t)
	ctx := context.Background()
	conn, err := prov.Bind(ctx, `EXAMPLE\llead`, "lead-pass")
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	defer conn.Close()

	id, err := conn.Lookup(ctx, "sAMAccountName", "llead")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	if id.DN != "CN=Lee Lead,OU=Users,DC=example,DC=com" {
		t.Fatalf("unexpected dn: %s", id.DN)
	}
	reports, _ := id.Attributes.Get("directReports")
	if !reports.IsList() {
		t.Fatalf("two reports should stay a list: %v", reports.Strings())
	}
	title, _ := id.Attributes.Get("title")
	if !title.IsScalar() {
		t.Fatalf("single title should collapse to a scalar")
	}
	if got := strings.Join(id.Attributes.Names(), ","); got != strings.Join(domainauth.DefaultAttributes(), ",") {
		t.Fatalf("attribute order not preserved: %s", got)
	}

	_, err = conn.Lookup(ctx, "sAMAccountName", "ghost")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConn_HierarchyThroughDirectory(t *testing.T) {
	prov := newFixtureProvider(t)
	ctx := context.Background()
	conn, err := prov.Bind(ctx, "jdev@example.com", "dev-pass")
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	defer conn.Close()

	me, err := conn.Lookup(ctx, "mail", "jdev@example.com")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	boss := &domainauth.Identity{DN: "CN=Grace Boss,OU=Users,DC=example,DC=com"}
	if !me.IsReportTo(ctx, conn, boss, 3) {
		t.Fatal("jdev should report to gboss within depth 3")
	}
	if !me.IsReportToByEmail("llead@example.com", 3) {
		t.Fatal("resolved chain should be walkable by email")
	}
	if me.IsReportToByEmail("gboss@example.com", 3) {
		t.Fatal("the match on the DN reference must not resolve the last hop")
	}

	lead, err := conn.LookupByDN(ctx, "CN=Lee Lead,OU=Users,DC=example,DC=com")
	if err != nil {
		t.Fatalf("LookupByDN error: %v", err)
	}
	if err := lead.UpdateReports(ctx, conn, 1); err != nil {
		t.Fatalf("UpdateReports error: %v", err)
	}
	if !lead.HasReportByUserName("sdev") {
		t.Fatal("sdev should be a resolved report of llead")
	}
}

func TestConn_LookupMany(t *testing.T) {
	prov := newFixtureProvider(t)
	ctx := context.Background()
	conn, _ := prov.Bind(ctx, `EXAMPLE\gboss`, "boss-pass")
	defer conn.Close()

	ids, err := conn.LookupMany(ctx, ports.Filter{Equals: map[string]string{"title": "software engineer"}})
	if err != nil {
		t.Fatalf("LookupMany error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 engineers, got %d", len(ids))
	}

	if _, err := conn.LookupMany(ctx, ports.Filter{Raw: "(title=*)"}); !apperrors.IsValidation(err) {
		t.Fatalf("raw filters should be rejected, got %v", err)
	}
	if _, err := conn.LookupMany(ctx, ports.Filter{Equals: map[string]string{"title": "CEO"}}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConn_ClosedConnectionFails(t *testing.T) {
	prov := newFixtureProvider(t)
	conn, _ := prov.Bind(context.Background(), `EXAMPLE\gboss`, "boss-pass")
	_ = conn.Close()

	_, err := conn.LookupByDN(context.Background(), "CN=Grace Boss,OU=Users,DC=example,DC=com")
	if !errors.Is(err, apperrors.ErrConnection) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestLoadFixture_Errors(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("entries:\n  - dn: CN=X\n    attributes:\n      bad: {nested: map}\n"))
	if err == nil {
		t.Fatal("nested maps should be rejected")
	}

	_, err = NewProvider(Config{Entries: []Entry{{DN: "CN=X", Attributes: map[string]FixtureValue{"mail": {"x@example.com"}}}}})
	if err == nil || !strings.Contains(err.Error(), "sAMAccountName") {
		t.Fatalf("entries without a login name should be rejected, got %v", err)
	}

	_, err = NewProvider(Config{Entries: []Entry{
		{DN: "CN=X", Attributes: map[string]FixtureValue{"sAMAccountName": {"x"}}},
		{DN: "cn=x", Attributes: map[string]FixtureValue{"sAMAccountName": {"y"}}},
	}})
	if err == nil {
		t.Fatal("duplicate DNs should be rejected")
	}

	entries, err := LoadFixture(strings.NewReader(""))
	if err != nil || len(entries) != 0 {
		t.Fatalf("empty fixture should load cleanly, got %v %v", entries, err)
	}
}
