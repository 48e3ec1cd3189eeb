package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/bootstrap"
	"github.com/target/mmk-ldap-auth/internal/testutil"
)

const fixturePath = "../../internal/adapters/devauth/testdata/directory.yaml"

func newCommandContext(t *testing.T, stdin string) (*commandContext, *bytes.Buffer) {
	t.Helper()
	cfg := config.AppConfig{
		Auth:   config.AuthConfig{Mode: config.AuthModeMock, DevDirectoryFile: fixturePath},
		LDAP:   config.LDAPConfig{Domain: "CORP"},
		Cookie: config.CookieConfig{Enabled: true, Key: "admin-secret"},
	}
	cfg.Sanitize()
	var out bytes.Buffer
	return &commandContext{
		Ctx:    context.Background(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
		In:     strings.NewReader(stdin),
		Out:    &out,
	}, &out
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	require.Contains(t, out, "Usage: ldapauth-admin")
	for name := range commands() {
		require.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "bind"), strings.Index(out, "check-config"))
	assert.Less(t, strings.Index(out, "clear-sessions"), strings.Index(out, "list-sessions"))
}

func TestCheckConfig(t *testing.T) {
	cmdCtx, out := newCommandContext(t, "")
	cmdCtx.Config.Authz.TitleContains = "software"

	require.NoError(t, runCheckConfig(cmdCtx, nil))
	require.Contains(t, out.String(), "configuration OK")
	require.Contains(t, out.String(), "authorization rules: true")
	require.Contains(t, out.String(), "cookie lifetime:     24h0m0s")
}

func TestCheckConfig_InvalidExpression(t *testing.T) {
	cmdCtx, _ := newCommandContext(t, "")
	cmdCtx.Config.Authz.Expression = "user.["

	require.Error(t, runCheckConfig(cmdCtx, nil))
}

func TestBind_PrintsIdentityAndVerdict(t *testing.T) {
	cmdCtx, out := newCommandContext(t, "dev-pass\n")
	cmdCtx.Config.Authz.TitleContains = "software"

	require.NoError(t, runBind(cmdCtx, []string{"--user", "jdev", "--manager", "--authorize"}))

	var report struct {
		BindName   string `json:"bind_name"`
		Authorized *bool  `json:"authorized"`
		Identity   struct {
			LoginName string `json:"login_name"`
			Manager   *struct {
				LoginName string `json:"login_name"`
			} `json:"manager"`
		} `json:"identity"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, `CORP\jdev`, report.BindName)
	assert.Equal(t, "jdev", report.Identity.LoginName)
	require.NotNil(t, report.Identity.Manager)
	assert.Equal(t, "llead", report.Identity.Manager.LoginName)
	require.NotNil(t, report.Authorized)
	assert.True(t, *report.Authorized)
}

func TestBind_DeniedVerdictCarriesReason(t *testing.T) {
	cmdCtx, out := newCommandContext(t, "boss-pass")
	cmdCtx.Config.Authz.TitleContains = "software"
	cmdCtx.Config.Authz.DeniedMessage = "Engineers only"

	require.NoError(t, runBind(cmdCtx, []string{"--user", "gboss", "--authorize"}))
	require.Contains(t, out.String(), `"authorized": false`)
	require.Contains(t, out.String(), `"reason": "Engineers only"`)
}

func TestBind_Errors(t *testing.T) {
	cmdCtx, _ := newCommandContext(t, "wrong\n")
	require.Error(t, runBind(cmdCtx, []string{"--user", "jdev"}))

	cmdCtx, _ = newCommandContext(t, "dev-pass\n")
	require.Error(t, runBind(cmdCtx, nil), "missing --user")

	cmdCtx, _ = newCommandContext(t, "")
	require.Error(t, runBind(cmdCtx, []string{"--user", "jdev"}), "empty stdin")
}

func TestDecodeCookie(t *testing.T) {
	cmdCtx, out := newCommandContext(t, "")
	codec, err := bootstrap.BuildTokenCodec(cmdCtx.Config.Cookie, cmdCtx.Config.LDAP.Schema)
	require.NoError(t, err)
	token, _, err := codec.Encode(testutil.NewIdentity("jdev", "CN=Jo Dev,OU=Users,DC=example,DC=com", ""))
	require.NoError(t, err)

	require.NoError(t, runDecodeCookie(cmdCtx, []string{"--token", token}))
	require.Contains(t, out.String(), `"login_name": "jdev"`)

	cmdCtx, _ = newCommandContext(t, token+"x\n")
	require.Error(t, runDecodeCookie(cmdCtx, nil), "tampered token from stdin")

	cmdCtx, _ = newCommandContext(t, "")
	cmdCtx.Config.Cookie.Enabled = false
	require.Error(t, runDecodeCookie(cmdCtx, []string{"--token", token}))
}

func TestParseClearSessionsFlags(t *testing.T) {
	_, err := parseClearSessionsFlags(nil)
	require.Error(t, err)

	_, err = parseClearSessionsFlags([]string{"--id", "abc", "--all"})
	require.Error(t, err)

	opts, err := parseClearSessionsFlags([]string{"--id", " abc ", "--dry-run"})
	require.NoError(t, err)
	assert.Equal(t, clearSessionsOptions{ID: "abc", DryRun: true}, opts)

	_, err = parseListSessionsFlags([]string{"--limit", "-1"})
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, confirm(strings.NewReader("y\n"), &out, "Delete?"))
	require.Contains(t, out.String(), "Delete? Continue? [y/N]: ")
	require.Error(t, confirm(strings.NewReader("\n"), &out, "Delete?"))
	require.Error(t, confirm(strings.NewReader(""), &out, "Delete?"))
}

func TestRenderTTL(t *testing.T) {
	assert.Equal(t, "none", renderTTL(-1))
	assert.Equal(t, "expired", renderTTL(-2))
	assert.Equal(t, "1m30s", renderTTL(90*time.Second+200*time.Millisecond))
}

func TestSessionCommandsRequireRedisBackend(t *testing.T) {
	cmdCtx, _ := newCommandContext(t, "")
	err := runListSessions(cmdCtx, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "SESSION_BACKEND=redis")
}

func TestListAndClearSessions(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	prefix := "admin-test:" + time.Now().Format("150405.000000") + ":"
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, client.HSet(ctx, prefix+id, "login_user", `{"login_name":"jdev"}`).Err())
		require.NoError(t, client.Expire(ctx, prefix+id, time.Hour).Err())
	}

	var out bytes.Buffer
	require.NoError(t, listSessions(ctx, client, prefix, listSessionsOptions{}, &out))
	require.Contains(t, out.String(), "login_user")
	require.Contains(t, out.String(), "3 session(s)")

	stats, err := clearSessions(ctx, client, prefix, clearSessionsOptions{All: true, DryRun: true}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.total)
	assert.EqualValues(t, 3, stats.deleted)

	stats, err = clearSessions(ctx, client, prefix, clearSessionsOptions{ID: "a"}, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.deleted)

	stats, err = clearSessions(ctx, client, prefix, clearSessionsOptions{All: true}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.total)
	assert.EqualValues(t, 2, stats.deleted)

	n, err := client.Exists(ctx, prefix+"b", prefix+"c").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
