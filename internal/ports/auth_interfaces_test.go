package ports_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-ldap-auth/internal/mocks"
	authmocks "github.com/target/mmk-ldap-auth/internal/mocks/auth"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.Directory = (*mocks.MockDirectory)(nil)
	var _ ports.DirectoryConn = (*mocks.MockDirectoryConn)(nil)
	var _ ports.SessionState = (*authmocks.MemorySessionState)(nil)
	var _ ports.SessionBackend = (*authmocks.MemorySessionBackend)(nil)
	var _ ports.CookieJar = (*authmocks.MemoryCookieJar)(nil)
	var _ ports.Challenge = (*authmocks.StaticChallenge)(nil)
}

func TestChallengeFunc(t *testing.T) {
	want := &ports.Submission{ID: "1", Username: "jdoe"}
	var c ports.Challenge = ports.ChallengeFunc(func(context.Context) (*ports.Submission, error) {
		return want, nil
	})

	got, err := c.Submission(context.Background())
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestFilter_IsZero(t *testing.T) {
	assert.True(t, ports.Filter{}.IsZero())
	assert.False(t, ports.Filter{Raw: "(cn=*)"}.IsZero())
	assert.False(t, ports.Filter{Equals: map[string]string{"title": "Engineer"}}.IsZero())
}
