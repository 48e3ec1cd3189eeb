package service

import (
	"context"
	"errors"
	"regexp"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
	"github.com/target/mmk-ldap-auth/internal/ports"
)

var (
	emailPattern       = regexp.MustCompile(`^[\w\-\.]+@([\w\-]+\.)+[\w\-]{2,4}$`)
	domainLoginPattern = regexp.MustCompile(`^(.*)\\(.*)$`)
)

// IsEmail reports whether input has the shape of an email address.
func IsEmail(input string) bool { return emailPattern.MatchString(input) }

// SplitLogin splits DOMAIN\name. The last backslash separates the two parts.
func SplitLogin(input string) (domain, name string, ok bool) {
	m := domainLoginPattern.FindStringSubmatch(input)
	if m == nil {
		return "", input, false
	}
	return m[1], m[2], true
}

// LoginNameTransform returns the default transform: email addresses and DOMAIN\name
// pass through unchanged; a bare name is qualified with domain.
func LoginNameTransform(domain string) ports.LoginNameTransform {
	return func(input string) string {
		if IsEmail(input) {
			return input
		}
		if _, _, ok := SplitLogin(input); ok {
			return input
		}
		if domain == "" {
			return input
		}
		return domain + `\` + input
	}
}

// DefaultLookup returns the default identity lookup. Email input is matched against the
// principal name, then the mail attribute; anything else against the login name.
func DefaultLookup(schema domainauth.AttributeSchema) ports.IdentityLookup {
	return func(ctx context.Context, conn ports.DirectoryConn, input string) (*domainauth.Identity, error) {
		if IsEmail(input) {
			id, err := conn.Lookup(ctx, schema.PrincipalName, input)
			if err == nil || !errors.Is(err, apperrors.ErrNotFound) || schema.Mail == "" {
				return id, err
			}
			return conn.Lookup(ctx, schema.Mail, input)
		}
		_, name, _ := SplitLogin(input)
		return conn.Lookup(ctx, schema.LoginName, name)
	}
}
