package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
)

// Directory authenticates against the directory service.
type Directory interface {
	// Bind dials the directory and binds as loginName. Rejected credentials (an empty
	// password included) yield ErrWrongCredentials; transport failures yield ErrConnection.
	Bind(ctx context.Context, loginName, password string) (DirectoryConn, error)
}

// DirectoryConn is a live, authenticated directory connection. It is used for one login
// attempt and must be closed on every exit path.
type DirectoryConn interface {
	// Lookup returns the first entry whose key attribute equals value, or ErrNotFound.
	Lookup(ctx context.Context, key, value string) (*domainauth.Identity, error)
	// LookupByDN returns the entry at dn, or ErrNotFound.
	LookupByDN(ctx context.Context, dn string) (*domainauth.Identity, error)
	// LookupMany returns every entry matching filter; zero matches is ErrNotFound.
	LookupMany(ctx context.Context, filter Filter) ([]*domainauth.Identity, error)
	Close() error
}

// Filter selects directory entries. Raw, when set, is passed through as a directory
// filter expression; otherwise Equals is combined with logical AND.
type Filter struct {
	Raw    string
	Equals map[string]string
}

// IsZero reports whether the filter selects nothing in particular.
func (f Filter) IsZero() bool { return f.Raw == "" && len(f.Equals) == 0 }

// SessionState is one server-side session slot: an untyped key/value store owned by a
// single browser session. Backends that serialize return json.RawMessage from Get.
type SessionState interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// SessionBackend opens the slot for a session id, creating it when missing.
type SessionBackend interface {
	Open(ctx context.Context, sessionID string) (SessionState, error)
}

// CookieJar reads request cookies and queues response cookies for one request cycle.
// Values written during the cycle are visible to later reads in the same cycle.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(name, value string, expires time.Time)
	Delete(name string)
}

// Submission is one submitted credential form.
type Submission struct {
	// ID identifies the submission so a re-delivered form is processed once.
	ID       string
	Username string
	Password string
	Remember bool
}

// Challenge presents the interactive credential prompt. A nil submission means the
// prompt is shown and nothing has been submitted yet.
type Challenge interface {
	Submission(ctx context.Context) (*Submission, error)
}

// ChallengeFunc adapts a function to Challenge.
type ChallengeFunc func(ctx context.Context) (*Submission, error)

func (f ChallengeFunc) Submission(ctx context.Context) (*Submission, error) { return f(ctx) }

// Authorizer decides whether a resolved identity may proceed. conn is nil when no live
// directory connection exists (session and cookie restores).
type Authorizer func(ctx context.Context, conn DirectoryConn, id *domainauth.Identity) domainauth.Verdict

// IdentityLookup resolves the identity of a freshly bound user from the raw form input.
type IdentityLookup func(ctx context.Context, conn DirectoryConn, input string) (*domainauth.Identity, error)

// LoginNameTransform turns raw form input into the bind login name.
type LoginNameTransform func(input string) string

// BindObserver is told the result of every directory bind attempt.
type BindObserver interface {
	ObserveBind(ctx context.Context, err error)
}
