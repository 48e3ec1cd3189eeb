package authz

// Package authz provides ready-made authorizers for the login flow. Each one is a
// ports.Authorizer; All combines them with logical AND.

import (
	"context"
	"slices"
	"strings"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// DefaultReason is the denial reason shown when a rule does not carry its own.
const DefaultReason = "You are not authorized to sign in."

// AllowMails admits identities whose mail is in the list (case-insensitive).
func AllowMails(reason string, mails ...string) ports.Authorizer {
	allowed := make(map[string]bool, len(mails))
	for _, m := range mails {
		if m = strings.TrimSpace(m); m != "" {
			allowed[strings.ToLower(m)] = true
		}
	}
	return func(_ context.Context, _ ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		if id != nil && allowed[strings.ToLower(id.Mail)] {
			return domainauth.Authorized()
		}
		return deny(reason)
	}
}

// TitleContains admits identities whose title contains substr (case-insensitive).
func TitleContains(reason, substr string) ports.Authorizer {
	needle := strings.ToLower(substr)
	return func(_ context.Context, _ ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		if id != nil && strings.Contains(strings.ToLower(id.Attribute("title")), needle) {
			return domainauth.Authorized()
		}
		return deny(reason)
	}
}

// MemberOf admits identities whose memberOf attribute names any of groups. Group DNs
// are compared case-insensitively.
func MemberOf(reason string, groups ...string) ports.Authorizer {
	return func(_ context.Context, _ ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		if id == nil {
			return deny(reason)
		}
		v, _ := id.Attributes.Get("memberOf")
		for _, have := range v.Strings() {
			if slices.ContainsFunc(groups, func(g string) bool { return strings.EqualFold(g, have) }) {
				return domainauth.Authorized()
			}
		}
		return deny(reason)
	}
}

// ReportsTo admits identities whose manager chain reaches the manager with the given
// mail within maxDepth. With a live connection missing managers are resolved; without
// one only the chain resolved at login time is consulted.
func ReportsTo(reason, mail string, maxDepth int) ports.Authorizer {
	return func(ctx context.Context, conn ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		match := func(m *domainauth.Identity) bool { return strings.EqualFold(m.Mail, mail) }
		var r domainauth.Resolver
		if conn != nil {
			r = conn
		}
		if mail != "" && id.IsReportToFunc(ctx, r, maxDepth, match) {
			return domainauth.Authorized()
		}
		return deny(reason)
	}
}

// All authorizes only when every non-nil authorizer does. The first denial wins.
func All(authorizers ...ports.Authorizer) ports.Authorizer {
	list := slices.DeleteFunc(slices.Clone(authorizers), func(a ports.Authorizer) bool { return a == nil })
	return func(ctx context.Context, conn ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		for _, a := range list {
			if v := a(ctx, conn, id); !v.IsAuthorized() {
				return v
			}
		}
		return domainauth.Authorized()
	}
}

func deny(reason string) domainauth.Verdict {
	if reason == "" {
		reason = DefaultReason
	}
	return domainauth.Denied(reason)
}
