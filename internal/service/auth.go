package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/observability/metrics"
	"github.com/target/mmk-ldap-auth/internal/observability/statsd"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

const (
	// DefaultWrongCredentialsMessage is shown for every bind, transport, or lookup failure.
	DefaultWrongCredentialsMessage = "Wrong username or password."
	// DefaultNotFoundMessage is shown when the bind succeeds but no entry matches.
	DefaultNotFoundMessage = "No information found for the user."
	// DefaultDeniedMessage is shown when an authorizer denies without a reason.
	DefaultDeniedMessage = "You are not authorized to sign in."

	defaultLogoutGrace = 100 * time.Millisecond
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Directory ports.Directory
	// Codec signs the identity cookie; nil disables the cookie channel.
	Codec      *TokenCodec
	Keys       SessionKeys
	CookieName string
	// AutoRenewal re-issues the cookie whenever a session or cookie restore succeeds.
	AutoRenewal bool
	// Domain qualifies bare login names for the default transform.
	Domain string
	Schema domainauth.AttributeSchema
	// Authorize is the default authorizer; nil authorizes everyone.
	Authorize ports.Authorizer

	WrongCredentialsMessage string
	NotFoundMessage         string
	// LogoutGrace is the pause after logout so the cookie deletion reaches the client.
	// Zero uses the default; negative disables it.
	LogoutGrace time.Duration
	// Metrics receives login outcome counters; nil disables them.
	Metrics statsd.Sink
	// BindObserver sees every bind result, e.g. to detect directory outages. Optional.
	BindObserver ports.BindObserver
	Logger       *slog.Logger
}

// AuthService runs the re-authentication state machine: it restores an identity from the
// session slot or the identity cookie, and otherwise drives the credential challenge.
type AuthService struct {
	directory   ports.Directory
	codec       *TokenCodec
	keys        SessionKeys
	cookieName  string
	autoRenewal bool
	authorize   ports.Authorizer
	loginName   ports.LoginNameTransform
	lookup      ports.IdentityLookup
	wrongMsg    string
	notFoundMsg string
	logoutGrace time.Duration
	metrics     statsd.Sink
	bindWatch   ports.BindObserver
	logger      *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Directory == nil {
		return nil, errors.New("directory is required")
	}
	schema := opts.Schema
	if schema.LoginName == "" {
		schema = domainauth.DefaultSchema()
	}
	authorize := opts.Authorize
	if authorize == nil {
		authorize = allowAll
	}
	wrongMsg := opts.WrongCredentialsMessage
	if wrongMsg == "" {
		wrongMsg = DefaultWrongCredentialsMessage
	}
	notFoundMsg := opts.NotFoundMessage
	if notFoundMsg == "" {
		notFoundMsg = DefaultNotFoundMessage
	}
	grace := opts.LogoutGrace
	if grace == 0 {
		grace = defaultLogoutGrace
	}
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		directory:   opts.Directory,
		codec:       opts.Codec,
		keys:        opts.Keys.withDefaults(),
		cookieName:  cookieName,
		autoRenewal: opts.AutoRenewal,
		authorize:   authorize,
		loginName:   LoginNameTransform(opts.Domain),
		lookup:      DefaultLookup(schema),
		wrongMsg:    wrongMsg,
		notFoundMsg: notFoundMsg,
		logoutGrace: grace,
		metrics:     opts.Metrics,
		bindWatch:   opts.BindObserver,
		logger:      logger.With("component", "auth"),
	}, nil
}

func allowAll(context.Context, ports.DirectoryConn, *domainauth.Identity) domainauth.Verdict {
	return domainauth.Authorized()
}

// NewStore builds the per-cycle SessionStore over a session slot and a cookie jar.
// jar may be nil to disable the cookie channel for this cycle.
func (s *AuthService) NewStore(state ports.SessionState, jar ports.CookieJar) (*SessionStore, error) {
	return NewSessionStore(SessionStoreOptions{
		State:      state,
		Jar:        jar,
		Codec:      s.codec,
		Keys:       s.keys,
		CookieName: s.cookieName,
		Logger:     s.logger,
	})
}

// LoginRequest is one invocation of the state machine.
type LoginRequest struct {
	Store *SessionStore
	// Challenge supplies the credential submission; nil means nothing was submitted.
	Challenge ports.Challenge
	// Optional per-call overrides.
	Authorize ports.Authorizer
	LoginName ports.LoginNameTransform
	Lookup    ports.IdentityLookup
}

// LoginResult is the outcome of one invocation.
type LoginResult struct {
	State    domainauth.State
	Identity *domainauth.Identity
	// Message is safe to show to the end user.
	Message string
	// Rerender asks the caller to redraw everything rendered under the previous state.
	Rerender bool
	// Pending means the challenge is waiting for a (new) submission.
	Pending bool
}

// Authenticated reports whether the result carries a usable identity.
func (r LoginResult) Authenticated() bool { return r.State.IsAuthenticated() && r.Identity != nil }

// Login runs one cycle: session restore, cookie restore, then the credential challenge.
// Authentication failures never produce an error; they leave the machine in Challenging
// with a user-facing message. Errors are reserved for session storage failures.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	if req.Store == nil {
		return LoginResult{}, errors.New("session store is required")
	}
	authorize := req.Authorize
	if authorize == nil {
		authorize = s.authorize
	}

	res, ok, err := s.restore(ctx, req.Store, authorize)
	if err != nil || ok {
		return res, err
	}
	return s.challenge(ctx, req, authorize)
}

// Status reports the restorable identity without presenting a challenge.
func (s *AuthService) Status(ctx context.Context, store *SessionStore) (LoginResult, error) {
	if store == nil {
		return LoginResult{}, errors.New("session store is required")
	}
	res, ok, err := s.restore(ctx, store, s.authorize)
	if err != nil || ok {
		return res, err
	}
	return LoginResult{State: domainauth.StateUnauthenticated}, nil
}

// Logout clears the session slot and the identity cookie, then waits the grace period.
func (s *AuthService) Logout(ctx context.Context, store *SessionStore) (LoginResult, error) {
	if store == nil {
		return LoginResult{}, errors.New("session store is required")
	}
	if err := store.SetSession(ctx, nil); err != nil {
		return LoginResult{}, err
	}
	store.DeleteCookie()
	metrics.EmitLogout(s.metrics)

	if s.logoutGrace > 0 {
		t := time.NewTimer(s.logoutGrace)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return LoginResult{State: domainauth.StateUnauthenticated, Rerender: true}, nil
}

func (s *AuthService) restore(ctx context.Context, store *SessionStore, authorize ports.Authorizer) (LoginResult, bool, error) {
	id, err := store.GetSession(ctx)
	if err != nil {
		return LoginResult{}, false, err
	}
	if id != nil {
		if s.permitted(ctx, authorize, id, metrics.SourceSession) {
			if err = s.renew(ctx, store, id); err != nil {
				return LoginResult{}, false, err
			}
			metrics.EmitRestore(s.metrics, metrics.SourceSession)
			return LoginResult{State: domainauth.StateSessionValid, Identity: id}, true, nil
		}
	}

	id = store.GetCookie(ctx)
	if id == nil || !s.permitted(ctx, authorize, id, metrics.SourceCookie) {
		return LoginResult{}, false, nil
	}
	if err = store.SetSession(ctx, id); err != nil {
		return LoginResult{}, false, err
	}
	if err = s.renew(ctx, store, id); err != nil {
		return LoginResult{}, false, err
	}
	metrics.EmitRestore(s.metrics, metrics.SourceCookie)
	return LoginResult{State: domainauth.StateCookieValid, Identity: id}, true, nil
}

// permitted evaluates authorize without a live connection.
func (s *AuthService) permitted(ctx context.Context, authorize ports.Authorizer, id *domainauth.Identity, source string) bool {
	v, err := s.evaluate(ctx, authorize, nil, id)
	if err != nil {
		s.logger.Error("authorizer failed", "login", id.LoginName, "error", err)
		metrics.EmitRestoreRejected(s.metrics, source)
		return false
	}
	if !v.IsAuthorized() {
		s.logger.Info("restored identity not authorized", "login", id.LoginName, "reason", v.Reason())
		metrics.EmitRestoreRejected(s.metrics, source)
	}
	return v.IsAuthorized()
}

func (s *AuthService) evaluate(ctx context.Context, authorize ports.Authorizer, conn ports.DirectoryConn, id *domainauth.Identity) (v domainauth.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("authorizer panic: %v", r)
		}
	}()
	return authorize(ctx, conn, id), nil
}

func (s *AuthService) renew(ctx context.Context, store *SessionStore, id *domainauth.Identity) error {
	if !s.autoRenewal {
		return nil
	}
	return store.SetCookie(ctx, id)
}

func (s *AuthService) challenge(ctx context.Context, req LoginRequest, authorize ports.Authorizer) (LoginResult, error) {
	pending := LoginResult{State: domainauth.StateChallenging, Pending: true}
	if req.Challenge == nil {
		return pending, nil
	}
	sub, err := req.Challenge.Submission(ctx)
	if err != nil {
		s.logger.Warn("reading credential submission failed", "error", err)
		return LoginResult{State: domainauth.StateChallenging, Message: s.wrongMsg}, nil
	}
	if sub == nil {
		return pending, nil
	}

	store := req.Store
	if sub.ID != "" {
		last, lerr := store.LastSubmission(ctx)
		if lerr != nil {
			return LoginResult{}, lerr
		}
		if last == sub.ID {
			s.logger.Debug("ignoring re-delivered submission", "submission", sub.ID)
			return pending, nil
		}
		if err = store.SetLastSubmission(ctx, sub.ID); err != nil {
			return LoginResult{}, err
		}
	}
	if err = store.SetRememberMe(ctx, sub.Remember); err != nil {
		return LoginResult{}, err
	}

	id, message := s.attempt(ctx, req, sub, authorize)
	if id == nil {
		return LoginResult{State: domainauth.StateChallenging, Message: message}, nil
	}

	if err = store.SetSession(ctx, id); err != nil {
		return LoginResult{}, err
	}
	if err = store.SetCookie(ctx, id); err != nil {
		return LoginResult{}, err
	}
	if err = store.ClearLastSubmission(ctx); err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("user authenticated", "login", id.LoginName, "remember", sub.Remember)
	return LoginResult{State: domainauth.StateAuthenticated, Identity: id, Rerender: true}, nil
}

// attempt binds, resolves, and authorizes one submission. It returns the identity, or
// nil and the message to show.
func (s *AuthService) attempt(ctx context.Context, req LoginRequest, sub *ports.Submission, authorize ports.Authorizer) (id *domainauth.Identity, message string) {
	start := time.Now()
	outcome, cause := metrics.OutcomeError, error(nil)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("login attempt panicked", "login", sub.Username, "panic", r, "stack", string(debug.Stack()))
			id, message = nil, s.wrongMsg
			outcome, cause = metrics.OutcomeError, fmt.Errorf("panic: %v", r)
		}
		metrics.EmitLoginAttempt(s.metrics, metrics.LoginMetric{Outcome: outcome, Duration: time.Since(start), Err: cause})
	}()

	transform := req.LoginName
	if transform == nil {
		transform = s.loginName
	}
	lookup := req.Lookup
	if lookup == nil {
		lookup = s.lookup
	}

	conn, err := s.directory.Bind(ctx, transform(sub.Username), sub.Password)
	if s.bindWatch != nil {
		s.bindWatch.ObserveBind(ctx, err)
	}
	if err != nil {
		s.logger.Warn("directory bind failed", "login", sub.Username, "kind", apperrors.GetCode(err), "error", err)
		outcome, cause = metrics.OutcomeError, err
		if apperrors.IsWrongCredentials(err) {
			outcome, cause = metrics.OutcomeWrongCredentials, nil
		}
		return nil, s.wrongMsg
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn("closing directory connection failed", "error", cerr)
		}
	}()

	found, err := lookup(ctx, conn, sub.Username)
	switch {
	case err != nil && apperrors.IsNotFound(err), err == nil && found == nil:
		s.logger.Info("no directory entry for user", "login", sub.Username)
		outcome = metrics.OutcomeNotFound
		return nil, s.notFoundMsg
	case err != nil:
		s.logger.Warn("identity lookup failed", "login", sub.Username, "kind", apperrors.GetCode(err), "error", err)
		outcome, cause = metrics.OutcomeError, err
		return nil, s.wrongMsg
	}

	v := authorize(ctx, conn, found)
	if !v.IsAuthorized() {
		s.logger.Info("login denied", "login", found.LoginName, "reason", v.Reason())
		outcome = metrics.OutcomeDenied
		if v.Reason() == "" {
			return nil, DefaultDeniedMessage
		}
		return nil, v.Reason()
	}
	outcome = metrics.OutcomeAuthenticated
	return found, ""
}
