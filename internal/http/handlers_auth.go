package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/ports"
	"github.com/target/mmk-ldap-auth/internal/service"
)

// AuthHandlers serves the login page, the form posts, and the status endpoint. Every
// request is one engine cycle over the caller's session slot and cookies.
type AuthHandlers struct {
	Svc      *service.AuthService
	Sessions ports.SessionBackend
	// SessionCookie names the opaque cookie that keys the session slot.
	SessionCookie string
	SessionTTL    time.Duration
	CookieDomain  string
	Logger        *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// cycle is one request's view of its session slot.
type cycle struct {
	sid   string
	jar   *cookieJar
	store *service.SessionStore
}

func (h *AuthHandlers) cookieParams() sessionCookieParams {
	return sessionCookieParams{Name: h.SessionCookie, Domain: h.CookieDomain, TTL: h.SessionTTL}
}

// openStore resolves the session slot for r and builds the per-cycle store.
func (h *AuthHandlers) openStore(w http.ResponseWriter, r *http.Request) (*cycle, error) {
	sid := sessionID(w, r, h.cookieParams())
	jar := newCookieJar(w, r, h.CookieDomain)
	store, err := h.openSlot(r, sid, jar)
	if err != nil {
		return nil, err
	}
	return &cycle{sid: sid, jar: jar, store: store}, nil
}

func (h *AuthHandlers) openSlot(r *http.Request, sid string, jar *cookieJar) (*service.SessionStore, error) {
	state, err := h.Sessions.Open(r.Context(), sid)
	if err != nil {
		return nil, err
	}
	return h.Svc.NewStore(state, jar)
}

// rekey moves the slot contents under a fresh id and points the browser at it.
// A slot id chosen before authentication never carries an authenticated identity.
func (h *AuthHandlers) rekey(w http.ResponseWriter, r *http.Request, c *cycle) error {
	sid := uuid.NewString()
	store, err := h.openSlot(r, sid, c.jar)
	if err != nil {
		return err
	}
	if err = c.store.MoveTo(r.Context(), store); err != nil {
		return err
	}
	setSessionCookie(w, r, h.cookieParams(), sid)
	c.sid, c.store = sid, store
	return nil
}

// establish re-keys the slot when res wrote a newly authenticated identity into it.
func (h *AuthHandlers) establish(w http.ResponseWriter, r *http.Request, c *cycle, res service.LoginResult) error {
	switch res.State {
	case domainauth.StateAuthenticated, domainauth.StateCookieValid:
		return h.rekey(w, r, c)
	default:
		return nil
	}
}

// Page renders the welcome page for a restorable identity, otherwise the login form.
func (h *AuthHandlers) Page(w http.ResponseWriter, r *http.Request) {
	c, err := h.openStore(w, r)
	if err != nil {
		h.fail(w, r, "open session", err)
		return
	}
	res, err := h.Svc.Login(r.Context(), service.LoginRequest{Store: c.store})
	if err == nil {
		err = h.establish(w, r, c, res)
	}
	if err != nil {
		h.fail(w, r, "login cycle", err)
		return
	}
	h.render(w, r, http.StatusOK, res, nil)
}

// Login processes a posted credential form.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	c, err := h.openStore(w, r)
	if err != nil {
		h.fail(w, r, "open session", err)
		return
	}
	res, err := h.Svc.Login(r.Context(), service.LoginRequest{Store: c.store, Challenge: formChallenge(r)})
	if err == nil {
		err = h.establish(w, r, c, res)
	}
	if err != nil {
		h.fail(w, r, "login cycle", err)
		return
	}

	switch {
	case res.Authenticated():
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case res.Pending:
		h.render(w, r, http.StatusOK, res, r)
	default:
		h.render(w, r, http.StatusUnauthorized, res, r)
	}
}

// Logout clears both channels, abandons the slot id and sends the browser back to the
// login form.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	c, err := h.openStore(w, r)
	if err != nil {
		h.fail(w, r, "open session", err)
		return
	}
	if _, err = h.Svc.Logout(r.Context(), c.store); err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	if err = c.store.Clear(r.Context()); err != nil {
		h.fail(w, r, "logout", err)
		return
	}
	setSessionCookie(w, r, h.cookieParams(), uuid.NewString())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type statusResponse struct {
	Authenticated bool                   `json:"authenticated"`
	User          *domainauth.Attributes `json:"user"`
}

// Status reports the identity restorable from the session or cookie channel. It never
// presents a challenge.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	c, err := h.openStore(w, r)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, errCodeSessionUnavailable)
		h.logger().Error("open session failed", "error", err)
		return
	}
	res, err := h.Svc.Status(r.Context(), c.store)
	if err == nil {
		err = h.establish(w, r, c, res)
	}
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, errCodeSessionUnavailable)
		h.logger().Error("status check failed", "error", err)
		return
	}

	body := statusResponse{Authenticated: res.Authenticated()}
	if body.Authenticated {
		flat := res.Identity.Flat()
		body.User = &flat
	}
	writeJSON(w, http.StatusOK, body)
}

// render draws the page for res. form, when set, is the request whose username and
// remember-me choice are echoed back into the form.
func (h *AuthHandlers) render(w http.ResponseWriter, r *http.Request, status int, res service.LoginResult, form *http.Request) {
	data := pageData{
		CSRFToken: CSRFToken(r),
		Remember:  true,
	}
	if res.Authenticated() {
		data.Authenticated = true
		data.DisplayName = res.Identity.DisplayName()
		data.Title = res.Identity.Attribute("title")
		data.Mail = res.Identity.Mail
	} else {
		data.Message = res.Message
		data.SubmissionID = uuid.NewString()
		if form != nil && form.PostForm != nil {
			data.Username = strings.TrimSpace(form.PostForm.Get(fieldUsername))
			data.Remember = form.PostForm.Get(fieldRemember) != ""
		}
	}
	renderPage(w, h.logger(), status, data)
}

func (h *AuthHandlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger().Error(op+" failed", "error", err, "path", r.URL.Path)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
