package auth

// Package auth contains domain-level types for directory identities, authorization
// verdicts, and the re-authentication state machine.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"

	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
)

// State is a step of the re-authentication state machine.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateSessionValid    State = "session_valid"
	StateCookieValid     State = "cookie_valid"
	StateChallenging     State = "challenging"
	StateAuthenticated   State = "authenticated"
	StateDenied          State = "denied"
)

// IsAuthenticated reports whether the state carries a usable identity.
func (s State) IsAuthenticated() bool {
	return s == StateSessionValid || s == StateCookieValid || s == StateAuthenticated
}

// Verdict is the result of an authorization predicate: authorized, or denied with a
// reason that is safe to show to the end user.
type Verdict struct {
	denied bool
	reason string
}

// Authorized returns the authorized verdict.
func Authorized() Verdict { return Verdict{} }

// Denied returns a denial carrying a user-facing reason.
func Denied(reason string) Verdict { return Verdict{denied: true, reason: reason} }

// IsAuthorized reports whether the verdict authorizes the identity.
func (v Verdict) IsAuthorized() bool { return !v.denied }

// Reason is the user-facing denial reason; empty when authorized.
func (v Verdict) Reason() string { return v.reason }

func (v Verdict) String() string {
	if !v.denied {
		return "authorized"
	}
	return fmt.Sprintf("denied(%s)", v.reason)
}

// AttributeSchema names the directory attributes that carry the structural fields of an
// Identity. Organizations with non-AD schemas override the defaults.
type AttributeSchema struct {
	LoginName     string
	DN            string
	Mail          string
	PrincipalName string
	Manager       string
	Reports       string
}

// DefaultSchema returns the Active Directory attribute names.
func DefaultSchema() AttributeSchema {
	return AttributeSchema{
		LoginName:     "sAMAccountName",
		DN:            "distinguishedName",
		Mail:          "mail",
		PrincipalName: "userPrincipalName",
		Manager:       "manager",
		Reports:       "directReports",
	}
}

// DefaultAttributes is the attribute list requested from the directory when none is configured.
func DefaultAttributes() []string {
	return []string{
		"sAMAccountName",
		"employeeNumber",
		"displayName",
		"givenName",
		"title",
		"mail",
		"userPrincipalName",
		"distinguishedName",
		"manager",
		"directReports",
	}
}

// Identity is a resolved directory entity.
//
// The structural fields are extracted once from Attributes by an AttributeSchema.
// Manager and Reports are weak links: nil until resolved through a live directory
// connection, and never assumed to be populated.
type Identity struct {
	LoginName     string
	DN            string
	Mail          string
	PrincipalName string
	ManagerDN     string
	ReportDNs     []string

	// Attributes holds every requested attribute, flat, after the collapse rule.
	Attributes Attributes

	Manager *Identity
	Reports []*Identity
}

// NewIdentity builds an Identity from flat attributes. entryDN is used when the schema's
// DN attribute is missing (the directory always knows an entry's DN); the fallback is
// also written into Attributes so the flat view rebuilds the same identity.
func (s AttributeSchema) NewIdentity(attrs Attributes, entryDN string) (*Identity, error) {
	id := &Identity{
		LoginName:     attrs.First(s.LoginName),
		DN:            attrs.First(s.DN),
		Mail:          attrs.First(s.Mail),
		PrincipalName: attrs.First(s.PrincipalName),
		ManagerDN:     attrs.First(s.Manager),
		Attributes:    attrs.Clone(),
	}
	if reports, ok := attrs.Get(s.Reports); ok {
		id.ReportDNs = reports.Strings()
	}
	if id.DN == "" && entryDN != "" {
		id.DN = entryDN
		id.Attributes.Set(s.DN, Scalar(entryDN))
	}

	if id.LoginName == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidEntry, apperrors.ErrCodeValidation,
			"attribute %q is missing", s.LoginName)
	}
	if id.DN == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidEntry, apperrors.ErrCodeValidation,
			"attribute %q is missing", s.DN)
	}
	return id, nil
}

// Attribute returns the first value of an arbitrary attribute, or "" when absent.
func (id *Identity) Attribute(name string) string {
	if id == nil {
		return ""
	}
	return id.Attributes.First(name)
}

// Flat returns the flat attribute view: everything except the resolved object graph.
func (id *Identity) Flat() Attributes {
	if id == nil {
		return Attributes{}
	}
	return id.Attributes.Clone()
}

// DisplayName is a convenience for UI greetings.
func (id *Identity) DisplayName() string {
	if name := id.Attribute("displayName"); name != "" {
		return name
	}
	return id.LoginName
}
