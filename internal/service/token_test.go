package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/testutil"
)

var testKey = []byte("test-signing-key-0123456789abcdef")

func newTestCodec(t *testing.T, clock abtime.AbstractTime) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(TokenCodecOptions{Key: testKey, ExpiryDays: 1, Clock: clock})
	require.NoError(t, err)
	return codec
}

func TestNewTokenCodec_Validation(t *testing.T) {
	_, err := NewTokenCodec(TokenCodecOptions{})
	require.Error(t, err)

	_, err = NewTokenCodec(TokenCodecOptions{Key: testKey, Algorithm: "RS256"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only HMAC")

	codec, err := NewTokenCodec(TokenCodecOptions{Key: testKey, Algorithm: "HS512", ExpiryDays: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, codec.Expiry())

	codec, err = NewTokenCodec(TokenCodecOptions{Key: testKey})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, codec.Expiry(), "one day by default")
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	clock := testutil.NewManualClock()
	codec := newTestCodec(t, clock)

	id := testutil.NewIdentity("jdoe", "CN=John Doe,DC=example,DC=com", "CN=Boss,DC=example,DC=com",
		"title", "Engineer")
	id.Attributes.SetValues("directReports", []string{"CN=A", "CN=B"})
	id.Manager = testutil.NewIdentity("boss", "CN=Boss,DC=example,DC=com", "")

	raw, expires, err := codec.Encode(id)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(24*time.Hour), expires)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.True(t, id.Flat().Equal(decoded.Attributes), "flat attributes survive the round trip")
	assert.Equal(t, id.LoginName, decoded.LoginName)
	assert.Equal(t, id.DN, decoded.DN)
	assert.Equal(t, id.ManagerDN, decoded.ManagerDN)
	assert.Nil(t, decoded.Manager, "the resolved manager graph is not carried")
	assert.Nil(t, decoded.Reports)
}

func TestTokenCodec_RoundTripEntryDNFallback(t *testing.T) {
	codec := newTestCodec(t, testutil.NewManualClock())

	var attrs domainauth.Attributes
	attrs.SetValues("sAMAccountName", []string{"jdoe"})
	attrs.SetValues("mail", []string{"jdoe@example.com"})
	id, err := domainauth.DefaultSchema().NewIdentity(attrs, "uid=jdoe,ou=people,dc=example,dc=com")
	require.NoError(t, err)

	raw, _, err := codec.Encode(id)
	require.NoError(t, err)
	decoded, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=com", decoded.DN)
	assert.Equal(t, "jdoe", decoded.LoginName)
}

func TestTokenCodec_PayloadShape(t *testing.T) {
	codec := newTestCodec(t, testutil.NewManualClock())
	raw, _, err := codec.Encode(testutil.NewIdentity("jdoe", "CN=J", ""))
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	tok, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	require.NoError(t, err)
	assert.Equal(t, "HS256", tok.Method.Alg())

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"user", "exp_date"}, keys)
	assert.IsType(t, float64(0), claims["exp_date"])
	assert.IsType(t, map[string]any{}, claims["user"])
}

func TestTokenCodec_Expiry(t *testing.T) {
	clock := testutil.NewManualClock()
	codec := newTestCodec(t, clock)
	raw, expires, err := codec.Encode(testutil.NewIdentity("jdoe", "CN=J", ""))
	require.NoError(t, err)

	clock.Advance(expires.Sub(clock.Now()) - time.Second)
	_, err = codec.Decode(raw)
	require.NoError(t, err, "still valid one second before expiry")

	clock.Advance(time.Second)
	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, apperrors.ErrToken, "expiry at exactly now is expired")

	clock.Advance(time.Hour)
	_, err = codec.Decode(raw)
	assert.ErrorIs(t, err, apperrors.ErrToken)
}

func TestTokenCodec_RejectsTamperedTokens(t *testing.T) {
	codec := newTestCodec(t, testutil.NewManualClock())
	raw, _, err := codec.Encode(testutil.NewIdentity("jdoe", "CN=J", ""))
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	flip := func(s string, i int) string {
		b := []byte(s)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		return string(b)
	}

	tampered := []string{
		parts[0] + "." + flip(parts[1], 5) + "." + parts[2],
		parts[0] + "." + flip(parts[1], len(parts[1])/2) + "." + parts[2],
		parts[0] + "." + parts[1] + "." + flip(parts[2], 0),
		"not-a-token",
		"",
	}
	for _, tok := range tampered {
		_, err := codec.Decode(tok)
		assert.ErrorIs(t, err, apperrors.ErrToken, "token %q", tok)
	}
}

func TestTokenCodec_RejectsForeignTokens(t *testing.T) {
	clock := testutil.NewManualClock()
	codec := newTestCodec(t, clock)
	future := float64(clock.Now().Add(time.Hour).Unix())
	user := map[string]any{"sAMAccountName": "jdoe", "distinguishedName": "CN=J"}

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"other key", sign(jwt.SigningMethodHS256, []byte("another-key"), jwt.MapClaims{"user": user, "exp_date": future})},
		{"other algorithm", sign(jwt.SigningMethodHS512, testKey, jwt.MapClaims{"user": user, "exp_date": future})},
		{"alg none", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"user": user, "exp_date": future})},
		{"missing exp_date", sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"user": user})},
		{"string exp_date", sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"user": user, "exp_date": "tomorrow"})},
		{"missing user", sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"exp_date": future})},
		{"user not an object", sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"user": "jdoe", "exp_date": future})},
		{"user without login name", sign(jwt.SigningMethodHS256, testKey, jwt.MapClaims{"user": map[string]any{"mail": "x@example.com"}, "exp_date": future})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := codec.Decode(tt.token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, apperrors.ErrToken)
		})
	}
}

func TestTokenCodec_DecodeAppliesCollapseRule(t *testing.T) {
	clock := testutil.NewManualClock()
	codec := newTestCodec(t, clock)
	claims := jwt.MapClaims{
		"user": map[string]any{
			"sAMAccountName":    []any{"jdoe"},
			"distinguishedName": "CN=J",
			"directReports":     []any{"CN=A", "CN=B"},
			"title":             []any{},
		},
		"exp_date": float64(clock.Now().Add(time.Hour).Unix()),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)

	id, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", id.LoginName)

	login, _ := id.Attributes.Get("sAMAccountName")
	assert.True(t, login.IsScalar())
	reports, _ := id.Attributes.Get("directReports")
	assert.True(t, reports.IsList())
	title, _ := id.Attributes.Get("title")
	assert.True(t, title.IsAbsent())
}

func TestTokenCodec_EncodeRequiresIdentity(t *testing.T) {
	codec := newTestCodec(t, nil)
	_, _, err := codec.Encode((*domainauth.Identity)(nil))
	assert.Error(t, err)
}
