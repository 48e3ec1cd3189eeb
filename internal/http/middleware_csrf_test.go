package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfEcho() http.Handler {
	return CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(CSRFToken(r)))
	}))
}

func TestCSRF_IssuesTokenOnSafeMethods(t *testing.T) {
	rec := httptest.NewRecorder()
	csrfEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCSRFCookieName, cookies[0].Name)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, cookies[0].Value, rec.Body.String())
}

func TestCSRF_ReusesExistingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "existing"})
	rec := httptest.NewRecorder()
	csrfEcho().ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "existing", rec.Body.String())
}

func TestCSRF_ValidatesStateChangingRequests(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		form   string
		header string
		want   int
	}{
		{name: "form field matches", cookie: "tok", form: "tok", want: http.StatusOK},
		{name: "header matches", cookie: "tok", header: "tok", want: http.StatusOK},
		{name: "mismatch", cookie: "tok", form: "other", want: http.StatusForbidden},
		{name: "no cookie", form: "tok", want: http.StatusForbidden},
		{name: "nothing submitted", cookie: "tok", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := url.Values{}
			if tt.form != "" {
				body.Set(DefaultCSRFFieldName, tt.form)
			}
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(DefaultCSRFHeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			csrfEcho().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
