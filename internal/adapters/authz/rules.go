package authz

import (
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// Rules is the declarative authorizer configuration. Empty fields are not checked;
// configured ones are combined with logical AND.
type Rules struct {
	AllowedMails  []string
	TitleContains string
	Groups        []string
	ReportsToMail string
	MaxDepth      int
	Expression    string
	// Reason overrides DefaultReason for every rule.
	Reason string
}

// IsZero reports whether no rule is configured.
func (r Rules) IsZero() bool {
	return len(r.AllowedMails) == 0 && r.TitleContains == "" && len(r.Groups) == 0 &&
		r.ReportsToMail == "" && r.Expression == ""
}

// Build turns the rules into one authorizer. It returns nil when no rule is configured,
// which admits every bound user.
func (r Rules) Build() (ports.Authorizer, error) {
	if r.IsZero() {
		return nil, nil
	}
	var list []ports.Authorizer
	if len(r.AllowedMails) > 0 {
		list = append(list, AllowMails(r.Reason, r.AllowedMails...))
	}
	if r.TitleContains != "" {
		list = append(list, TitleContains(r.Reason, r.TitleContains))
	}
	if len(r.Groups) > 0 {
		list = append(list, MemberOf(r.Reason, r.Groups...))
	}
	if r.ReportsToMail != "" {
		list = append(list, ReportsTo(r.Reason, r.ReportsToMail, r.MaxDepth))
	}
	if r.Expression != "" {
		expr, err := Expression(r.Reason, r.Expression)
		if err != nil {
			return nil, err
		}
		list = append(list, expr)
	}
	return All(list...), nil
}
