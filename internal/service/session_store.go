package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// SessionKeys names the session-slot entries owned by the login flow.
type SessionKeys struct {
	User       string
	RememberMe string
	AuthResult string
}

// DefaultSessionKeys returns the stock slot keys.
func DefaultSessionKeys() SessionKeys {
	return SessionKeys{
		User:       "login_user",
		RememberMe: "login_remember_me",
		AuthResult: "login_result",
	}
}

func (k SessionKeys) withDefaults() SessionKeys {
	d := DefaultSessionKeys()
	if k.User == "" {
		k.User = d.User
	}
	if k.RememberMe == "" {
		k.RememberMe = d.RememberMe
	}
	if k.AuthResult == "" {
		k.AuthResult = d.AuthResult
	}
	return k
}

// DefaultCookieName is the name of the signed identity cookie.
const DefaultCookieName = "login_cookie"

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	State ports.SessionState
	// Jar is nil when the cookie channel is disabled.
	Jar        ports.CookieJar
	Codec      *TokenCodec
	Keys       SessionKeys
	CookieName string
	Logger     *slog.Logger
}

// SessionStore gives the login flow typed access to its two channels for one request
// cycle: the server-side session slot and the signed identity cookie.
type SessionStore struct {
	state      ports.SessionState
	jar        ports.CookieJar
	codec      *TokenCodec
	keys       SessionKeys
	cookieName string
	logger     *slog.Logger
}

// NewSessionStore constructs a SessionStore. The cookie channel is disabled when either
// Jar or Codec is nil.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.State == nil {
		return nil, errors.New("session state is required")
	}
	jar := opts.Jar
	if opts.Codec == nil {
		jar = nil
	}
	name := opts.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		state:      opts.State,
		jar:        jar,
		codec:      opts.Codec,
		keys:       opts.Keys.withDefaults(),
		cookieName: name,
		logger:     logger,
	}, nil
}

// CookieEnabled reports whether the cookie channel is active for this cycle.
func (s *SessionStore) CookieEnabled() bool { return s.jar != nil }

// GetSession returns the identity held in the session slot, or nil.
func (s *SessionStore) GetSession(ctx context.Context) (*domainauth.Identity, error) {
	v, ok, err := s.state.Get(ctx, s.keys.User)
	if err != nil {
		return nil, fmt.Errorf("read session user: %w", err)
	}
	if !ok {
		return nil, nil
	}
	id, err := decodeStored[*domainauth.Identity](v)
	if err != nil {
		s.logger.Warn("discarding unreadable session user", "error", err)
		return nil, nil
	}
	return id, nil
}

// SetSession stores id in the session slot; nil clears it.
func (s *SessionStore) SetSession(ctx context.Context, id *domainauth.Identity) error {
	if id == nil {
		if err := s.state.Delete(ctx, s.keys.User); err != nil {
			return fmt.Errorf("clear session user: %w", err)
		}
		return nil
	}
	if err := s.state.Set(ctx, s.keys.User, id); err != nil {
		return fmt.Errorf("write session user: %w", err)
	}
	return nil
}

// GetCookie decodes the identity cookie. Invalid or expired tokens are logged and
// reported as absent.
func (s *SessionStore) GetCookie(_ context.Context) *domainauth.Identity {
	if s.jar == nil {
		return nil
	}
	raw, ok := s.jar.Get(s.cookieName)
	if !ok || raw == "" {
		return nil
	}
	id, err := s.codec.Decode(raw)
	if err != nil {
		s.logger.Warn("identity cookie rejected", "cookie", s.cookieName, "error", err)
		return nil
	}
	return id
}

// SetCookie writes a freshly signed identity cookie. It does nothing when the cookie
// channel is disabled or the user declined to be remembered.
func (s *SessionStore) SetCookie(ctx context.Context, id *domainauth.Identity) error {
	if id == nil || s.jar == nil {
		return nil
	}
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return err
	}
	if !remember {
		return nil
	}
	token, expires, err := s.codec.Encode(id)
	if err != nil {
		return fmt.Errorf("encode identity cookie: %w", err)
	}
	s.jar.Set(s.cookieName, token, expires)
	return nil
}

// DeleteCookie removes the identity cookie when the browser sent one.
func (s *SessionStore) DeleteCookie() {
	if s.jar == nil {
		return
	}
	if _, ok := s.jar.Get(s.cookieName); ok {
		s.jar.Delete(s.cookieName)
	}
}

// RememberMe returns the remember-me flag, storing the default (true) on first read.
func (s *SessionStore) RememberMe(ctx context.Context) (bool, error) {
	v, ok, err := s.state.Get(ctx, s.keys.RememberMe)
	if err != nil {
		return false, fmt.Errorf("read remember-me flag: %w", err)
	}
	if ok {
		remember, decErr := decodeStored[bool](v)
		if decErr == nil {
			return remember, nil
		}
		s.logger.Warn("resetting unreadable remember-me flag", "error", decErr)
	}
	if err = s.SetRememberMe(ctx, true); err != nil {
		return false, err
	}
	return true, nil
}

// SetRememberMe stores the remember-me flag.
func (s *SessionStore) SetRememberMe(ctx context.Context, remember bool) error {
	if err := s.state.Set(ctx, s.keys.RememberMe, remember); err != nil {
		return fmt.Errorf("write remember-me flag: %w", err)
	}
	return nil
}

// LastSubmission returns the id of the submission currently being processed, or "".
func (s *SessionStore) LastSubmission(ctx context.Context) (string, error) {
	v, ok, err := s.state.Get(ctx, s.keys.AuthResult)
	if err != nil {
		return "", fmt.Errorf("read last submission: %w", err)
	}
	if !ok {
		return "", nil
	}
	id, err := decodeStored[string](v)
	if err != nil {
		return "", nil
	}
	return id, nil
}

// SetLastSubmission records the submission being processed.
func (s *SessionStore) SetLastSubmission(ctx context.Context, id string) error {
	if err := s.state.Set(ctx, s.keys.AuthResult, id); err != nil {
		return fmt.Errorf("write last submission: %w", err)
	}
	return nil
}

// ClearLastSubmission forgets the processed submission.
func (s *SessionStore) ClearLastSubmission(ctx context.Context) error {
	if err := s.state.Delete(ctx, s.keys.AuthResult); err != nil {
		return fmt.Errorf("clear last submission: %w", err)
	}
	return nil
}

// Clear removes every entry the login flow owns from the session slot.
func (s *SessionStore) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range []string{s.keys.User, s.keys.RememberMe, s.keys.AuthResult} {
		if err := s.state.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// MoveTo copies the identity and the remember-me flag into dst, then clears s.
// Callers use it to re-key a slot once it holds an authenticated identity.
func (s *SessionStore) MoveTo(ctx context.Context, dst *SessionStore) error {
	if dst == nil {
		return errors.New("destination session store is required")
	}
	id, err := s.GetSession(ctx)
	if err != nil {
		return err
	}
	remember, err := s.RememberMe(ctx)
	if err != nil {
		return err
	}
	if err = dst.SetRememberMe(ctx, remember); err != nil {
		return err
	}
	if err = dst.SetSession(ctx, id); err != nil {
		return err
	}
	return s.Clear(ctx)
}

// decodeStored converts a slot value back to T. Memory slots hand back the stored value
// itself; serializing backends hand back JSON.
func decodeStored[T any](v any) (T, error) {
	var out T
	switch t := v.(type) {
	case T:
		return t, nil
	case json.RawMessage:
		err := json.Unmarshal(t, &out)
		return out, err
	case []byte:
		err := json.Unmarshal(t, &out)
		return out, err
	default:
		return out, fmt.Errorf("unexpected session value of type %T", v)
	}
}
