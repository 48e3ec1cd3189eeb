package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/ports"
	"github.com/target/mmk-ldap-auth/internal/testutil"
)

type countingSink struct {
	mu      sync.Mutex
	counts  []string
	tags    []map[string]string
	timings int
}

func (c *countingSink) Count(name string, _ int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, name)
	c.tags = append(c.tags, tags)
}

func (c *countingSink) Timing(string, time.Duration, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timings++
}

func (c *countingSink) last() (string, map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.counts) == 0 {
		return "", nil
	}
	return c.counts[len(c.counts)-1], c.tags[len(c.tags)-1]
}

func TestAuthService_Metrics(t *testing.T) {
	sink := &countingSink{}
	f := newAuthFixture(t, nil, func(o *AuthServiceOptions) { o.Metrics = sink })
	ctx := context.Background()
	jdoe := testutil.NewIdentity("jdoe", "CN=John Doe,DC=example,DC=com", "")

	f.dir.EXPECT().Bind(gomock.Any(), `CORP\jdoe`, "bad").
		Return(nil, apperrors.WrongCredentials(errors.New("invalid credentials")))
	_, err := f.svc.Login(ctx, LoginRequest{Store: f.store, Challenge: submit("s1", "jdoe", "bad", true)})
	require.NoError(t, err)
	name, tags := sink.last()
	assert.Equal(t, "auth.login", name)
	assert.Equal(t, map[string]string{"outcome": "wrong_credentials"}, tags)

	f.dir.EXPECT().Bind(gomock.Any(), `CORP\jdoe`, "secret").
		Return(nil, apperrors.Connection(errors.New("refused")))
	_, err = f.svc.Login(ctx, LoginRequest{Store: f.store, Challenge: submit("s2", "jdoe", "secret", true)})
	require.NoError(t, err)
	_, tags = sink.last()
	assert.Equal(t, map[string]string{"outcome": "error", "error_class": "connection"}, tags)

	f.dir.EXPECT().Bind(gomock.Any(), `CORP\jdoe`, "secret").Return(f.conn, nil)
	f.conn.EXPECT().Lookup(gomock.Any(), "sAMAccountName", "jdoe").Return(jdoe, nil)
	f.conn.EXPECT().Close().Return(nil)
	res, err := f.svc.Login(ctx, LoginRequest{Store: f.store, Challenge: submit("s3", "jdoe", "secret", true)})
	require.NoError(t, err)
	require.True(t, res.Authenticated())
	_, tags = sink.last()
	assert.Equal(t, "authenticated", tags["outcome"])
	assert.Equal(t, 3, sink.timings)

	_, err = f.svc.Login(ctx, LoginRequest{Store: f.store})
	require.NoError(t, err)
	name, tags = sink.last()
	assert.Equal(t, "auth.restore", name)
	assert.Equal(t, "session", tags["source"])

	_, err = f.svc.Logout(ctx, f.store)
	require.NoError(t, err)
	name, _ = sink.last()
	assert.Equal(t, "auth.logout", name)
}

func TestAuthService_Metrics_NotFoundAndDenied(t *testing.T) {
	sink := &countingSink{}
	f := newAuthFixture(t, nil, func(o *AuthServiceOptions) { o.Metrics = sink })
	ctx := context.Background()

	f.dir.EXPECT().Bind(gomock.Any(), gomock.Any(), gomock.Any()).Return(f.conn, nil).Times(2)
	f.conn.EXPECT().Close().Return(nil).Times(2)
	f.conn.EXPECT().Lookup(gomock.Any(), "sAMAccountName", "ghost").
		Return(nil, apperrors.NotFoundf("no entry"))
	f.conn.EXPECT().Lookup(gomock.Any(), "sAMAccountName", "jdoe").
		Return(testutil.NewIdentity("jdoe", "CN=John Doe,DC=example,DC=com", ""), nil)

	_, err := f.svc.Login(ctx, LoginRequest{Store: f.store, Challenge: submit("s1", "ghost", "pw", false)})
	require.NoError(t, err)
	_, tags := sink.last()
	assert.Equal(t, "not_found", tags["outcome"])

	_, err = f.svc.Login(ctx, LoginRequest{
		Store:     f.store,
		Challenge: submit("s2", "jdoe", "pw", false),
		Authorize: func(context.Context, ports.DirectoryConn, *domainauth.Identity) domainauth.Verdict {
			return domainauth.Denied("nope")
		},
	})
	require.NoError(t, err)
	_, tags = sink.last()
	assert.Equal(t, "denied", tags["outcome"])
}
