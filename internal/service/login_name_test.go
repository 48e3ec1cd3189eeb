package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/mocks"
	"github.com/target/mmk-ldap-auth/internal/testutil"
)

func TestLoginNameTransform(t *testing.T) {
	transform := LoginNameTransform("CORP")
	tests := []struct {
		in   string
		want string
	}{
		{"jdoe@example.com", "jdoe@example.com"},
		{"j.doe-x@mail.example.co", "j.doe-x@mail.example.co"},
		{`CORP\jdoe`, `CORP\jdoe`},
		{`OTHER\jdoe`, `OTHER\jdoe`},
		{"jdoe", `CORP\jdoe`},
		{"jdoe@localhost", `CORP\jdoe@localhost`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transform(tt.in), "input %q", tt.in)
	}

	assert.Equal(t, "jdoe", LoginNameTransform("")("jdoe"), "no configured domain")
}

func TestSplitLogin(t *testing.T) {
	domain, name, ok := SplitLogin(`CORP\jdoe`)
	assert.True(t, ok)
	assert.Equal(t, "CORP", domain)
	assert.Equal(t, "jdoe", name)

	domain, name, ok = SplitLogin(`A\B\jdoe`)
	assert.True(t, ok)
	assert.Equal(t, `A\B`, domain)
	assert.Equal(t, "jdoe", name)

	domain, name, ok = SplitLogin("jdoe")
	assert.False(t, ok)
	assert.Empty(t, domain)
	assert.Equal(t, "jdoe", name)
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("jdoe@example.com"))
	assert.False(t, IsEmail("jdoe"))
	assert.False(t, IsEmail(`CORP\jdoe`))
	assert.False(t, IsEmail("jdoe@example.toolong"))
}

func TestDefaultLookup(t *testing.T) {
	ctx := context.Background()
	lookup := DefaultLookup(domainauth.DefaultSchema())
	jdoe := testutil.NewIdentity("jdoe", "CN=J", "")

	t.Run("email uses the principal name", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockDirectoryConn(ctrl)
		conn.EXPECT().Lookup(ctx, "userPrincipalName", "jdoe@example.com").Return(jdoe, nil)

		got, err := lookup(ctx, conn, "jdoe@example.com")
		require.NoError(t, err)
		assert.Same(t, jdoe, got)
	})

	t.Run("email falls back to mail", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockDirectoryConn(ctrl)
		gomock.InOrder(
			conn.EXPECT().Lookup(ctx, "userPrincipalName", "jdoe@example.com").
				Return(nil, apperrors.NotFoundf("none")),
			conn.EXPECT().Lookup(ctx, "mail", "jdoe@example.com").Return(jdoe, nil),
		)

		got, err := lookup(ctx, conn, "jdoe@example.com")
		require.NoError(t, err)
		assert.Same(t, jdoe, got)
	})

	t.Run("transport errors do not fall back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockDirectoryConn(ctrl)
		conn.EXPECT().Lookup(ctx, "userPrincipalName", "jdoe@example.com").
			Return(nil, apperrors.Connection(context.DeadlineExceeded))

		_, err := lookup(ctx, conn, "jdoe@example.com")
		assert.ErrorIs(t, err, apperrors.ErrConnection)
	})

	t.Run("domain login uses the short name", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockDirectoryConn(ctrl)
		conn.EXPECT().Lookup(ctx, "sAMAccountName", "jdoe").Return(jdoe, nil)

		_, err := lookup(ctx, conn, `CORP\jdoe`)
		require.NoError(t, err)
	})

	t.Run("bare name uses the short name", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		conn := mocks.NewMockDirectoryConn(ctrl)
		conn.EXPECT().Lookup(ctx, "sAMAccountName", "jdoe").Return(jdoe, nil)

		_, err := lookup(ctx, conn, "jdoe")
		require.NoError(t, err)
	})
}
