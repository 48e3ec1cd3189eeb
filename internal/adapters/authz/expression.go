package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

// Expression compiles a JMESPath expression evaluated against the identity document:
//
//	{"user": {<attributes>}, "managers": [{<attributes>}, ...]}
//
// where managers lists the resolved manager chain, nearest first. A truthy result
// authorizes; false, null, "", [], {} and evaluation errors deny.
func Expression(reason, expr string) (ports.Authorizer, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errors.New("authorization expression is empty")
	}
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile authorization expression: %w", err)
	}
	return func(_ context.Context, _ ports.DirectoryConn, id *domainauth.Identity) domainauth.Verdict {
		if id == nil {
			return deny(reason)
		}
		out, evalErr := compiled.Search(identityDocument(id))
		if evalErr != nil || !truthy(out) {
			return deny(reason)
		}
		return domainauth.Authorized()
	}, nil
}

// identityDocument builds the generic view evaluated by expressions.
func identityDocument(id *domainauth.Identity) map[string]any {
	managers := []any{}
	seen := map[string]bool{id.DN: true}
	for m := id.Manager; m != nil && !seen[m.DN]; m = m.Manager {
		seen[m.DN] = true
		managers = append(managers, m.Attributes.Map())
	}
	return map[string]any{
		"user":     id.Attributes.Map(),
		"managers": managers,
	}
}

// truthy applies JMESPath truthiness.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
