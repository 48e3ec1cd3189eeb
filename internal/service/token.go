package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/thejerf/abtime"

	domainauth "github.com/target/mmk-ldap-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
)

const defaultExpiryDays = 1.0

// TokenCodecOptions groups dependencies for TokenCodec.
type TokenCodecOptions struct {
	Key []byte
	// Algorithm is HS256 (default), HS384, or HS512.
	Algorithm  string
	ExpiryDays float64
	Schema     domainauth.AttributeSchema
	Clock      abtime.AbstractTime
}

// TokenCodec signs identities into cookie tokens and verifies them back.
//
// The payload is {"user": <flat attributes>, "exp_date": <epoch seconds>}. Resolved
// manager and report graphs are never carried.
type TokenCodec struct {
	key    []byte
	method *jwt.SigningMethodHMAC
	expiry time.Duration
	schema domainauth.AttributeSchema
	clock  abtime.AbstractTime
	parser *jwt.Parser
}

// tokenClaims is the cookie payload. RegisteredClaims is embedded to satisfy jwt.Claims;
// its fields stay empty and are omitted on the wire.
type tokenClaims struct {
	jwt.RegisteredClaims

	User    *domainauth.Attributes `json:"user"`
	ExpDate *float64               `json:"exp_date"`
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(opts TokenCodecOptions) (*TokenCodec, error) {
	if len(opts.Key) == 0 {
		return nil, errors.New("token signing key is required")
	}
	alg := opts.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q: only HMAC algorithms are allowed", alg)
	}
	days := opts.ExpiryDays
	if days <= 0 {
		days = defaultExpiryDays
	}
	schema := opts.Schema
	if schema.LoginName == "" {
		schema = domainauth.DefaultSchema()
	}
	clock := opts.Clock
	if clock == nil {
		clock = abtime.NewRealTime()
	}

	return &TokenCodec{
		key:    append([]byte(nil), opts.Key...),
		method: method,
		expiry: time.Duration(days * float64(24*time.Hour)),
		schema: schema,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// Expiry is the lifetime of newly encoded tokens.
func (c *TokenCodec) Expiry() time.Duration { return c.expiry }

// Encode signs the flat attributes of id with an absolute expiry of now plus the
// configured lifetime. It returns the token and its expiry instant.
func (c *TokenCodec) Encode(id *domainauth.Identity) (string, time.Time, error) {
	if id == nil {
		return "", time.Time{}, errors.New("identity is required")
	}
	expires := c.clock.Now().Add(c.expiry)
	flat := id.Flat()
	exp := epochSeconds(expires)

	token := jwt.NewWithClaims(c.method, tokenClaims{User: &flat, ExpDate: &exp})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Decode verifies raw and returns the identity it carries. Malformed payloads, bad
// signatures, foreign algorithms, and expired tokens all yield ErrToken.
func (c *TokenCodec) Decode(raw string) (*domainauth.Identity, error) {
	if raw == "" {
		return nil, apperrors.Tokenf("token is empty")
	}

	var claims tokenClaims
	_, err := c.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeToken, "token verification failed")
	}
	if claims.User == nil {
		return nil, apperrors.Tokenf("token has no user")
	}
	if claims.ExpDate == nil {
		return nil, apperrors.Tokenf("token has no exp_date")
	}
	if *claims.ExpDate <= epochSeconds(c.clock.Now()) {
		return nil, apperrors.Tokenf("token expired")
	}

	id, err := c.schema.NewIdentity(*claims.User, "")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeToken, "token user is not a valid identity")
	}
	return id, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
