package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieJar_WritesShadowRequestCookies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "login_cookie", Value: "old"})
	rec := httptest.NewRecorder()
	jar := newCookieJar(rec, req, "example.com")

	v, ok := jar.Get("login_cookie")
	require.True(t, ok)
	assert.Equal(t, "old", v)

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	jar.Set("login_cookie", "new", expires)
	v, ok = jar.Get("login_cookie")
	require.True(t, ok)
	assert.Equal(t, "new", v)

	jar.Delete("login_cookie")
	_, ok = jar.Get("login_cookie")
	assert.False(t, ok)

	_, ok = jar.Get("missing")
	assert.False(t, ok)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "new", cookies[0].Value)
	assert.Equal(t, "example.com", cookies[0].Domain)
	assert.True(t, cookies[0].Expires.Equal(expires))
	assert.True(t, cookies[0].HttpOnly)
	assert.Negative(t, cookies[1].MaxAge)
}

func TestCookieJar_SecureBehindTLSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()

	newCookieJar(rec, req, "").Set("c", "v", time.Now().Add(time.Hour))

	require.Len(t, rec.Result().Cookies(), 1)
	assert.True(t, rec.Result().Cookies()[0].Secure)
}

func TestSessionID(t *testing.T) {
	params := sessionCookieParams{Name: DefaultSessionCookie, TTL: time.Hour}

	rec := httptest.NewRecorder()
	issued := sessionID(rec, httptest.NewRequest(http.MethodGet, "/", nil), params)
	require.Len(t, issued, 36)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, issued, cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: issued})
	assert.Equal(t, issued, sessionID(httptest.NewRecorder(), req, params))
}
