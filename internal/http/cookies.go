package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-ldap-auth/internal/ports"
)

// cookieJar adapts one request/response pair to ports.CookieJar. Writes are queued on
// the response and shadow the request cookies for the rest of the cycle.
type cookieJar struct {
	w       http.ResponseWriter
	r       *http.Request
	domain  string
	secure  bool
	pending map[string]*string // nil marks a deletion
}

var _ ports.CookieJar = (*cookieJar)(nil)

func newCookieJar(w http.ResponseWriter, r *http.Request, domain string) *cookieJar {
	return &cookieJar{
		w:       w,
		r:       r,
		domain:  domain,
		secure:  isSecureRequest(r),
		pending: make(map[string]*string),
	}
}

func (j *cookieJar) Get(name string) (string, bool) {
	if v, ok := j.pending[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *cookieJar) Set(name, value string, expires time.Time) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.domain,
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	j.pending[name] = &value
}

// Delete mirrors the attributes used by Set so browsers match the cookie.
func (j *cookieJar) Delete(name string) {
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	j.pending[name] = nil
}

// sessionID returns the slot id carried by the request, issuing a new one when the
// cookie is missing or malformed. The cookie is refreshed on every response so the
// idle lifetime slides with the slot TTL.
func sessionID(w http.ResponseWriter, r *http.Request, p sessionCookieParams) string {
	id := ""
	if c, err := r.Cookie(p.Name); err == nil {
		if parsed, parseErr := uuid.Parse(c.Value); parseErr == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	setSessionCookie(w, r, p, id)
	return id
}

// setSessionCookie issues the slot cookie, replacing one already queued on w.
func setSessionCookie(w http.ResponseWriter, r *http.Request, p sessionCookieParams, id string) {
	prefix := p.Name + "="
	queued := w.Header().Values("Set-Cookie")
	kept := make([]string, 0, len(queued))
	for _, line := range queued {
		if !strings.HasPrefix(line, prefix) {
			kept = append(kept, line)
		}
	}
	w.Header()["Set-Cookie"] = kept
	http.SetCookie(w, &http.Cookie{
		Name:     p.Name,
		Value:    id,
		Path:     "/",
		Domain:   p.Domain,
		MaxAge:   int(p.TTL.Seconds()),
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionCookieParams struct {
	Name   string
	Domain string
	TTL    time.Duration
}
