// Package auth provides the bearer-token gate in front of the SSE transport.
//
// Authentication is opt-in: with no shared secret configured every request is
// allowed. With a secret configured, requests must carry a Bearer JWT signed
// with that secret. Every verification failure is reported as the same
// ErrUnauthorized so the response body never reveals which check failed.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is the uniform denial for every failed check: missing
// header, wrong scheme, bad signature, expired token, claim mismatch.
var ErrUnauthorized = errors.New("unauthorized")

// Allowed signing algorithms. HS256 is the default.
const (
	AlgHS256 = "HS256"
	AlgHS384 = "HS384"
	AlgHS512 = "HS512"
)

// Config holds the gate's immutable settings, loaded once at startup.
type Config struct {
	// Secret is the shared HMAC secret. Empty disables authentication.
	Secret string

	// Algorithm restricts token verification to one HMAC variant.
	// Defaults to HS256.
	Algorithm string

	// Audience, when set, must match the token's "aud" claim.
	Audience string

	// Issuer, when set, must match the token's "iss" claim.
	Issuer string
}

// Gate performs the stateless per-request check. It has no side effects and
// no state beyond the configuration captured at construction.
type Gate struct {
	secret  []byte
	enabled bool
	opts    []jwt.ParserOption
}

// NewGate builds a gate from config. An unknown algorithm is an error so a
// typo fails at boot rather than silently allowing everything.
func NewGate(cfg Config) (*Gate, error) {
	if cfg.Secret == "" {
		return &Gate{}, nil
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = AlgHS256
	}
	switch alg {
	case AlgHS256, AlgHS384, AlgHS512:
	default:
		return nil, fmt.Errorf("unsupported auth algorithm %q", alg)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{alg})}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Gate{
		secret:  []byte(cfg.Secret),
		enabled: true,
		opts:    opts,
	}, nil
}

// Enabled reports whether a secret is configured.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// Check validates the Authorization header value. With no secret configured
// it always allows. Every failure maps to ErrUnauthorized.
func (g *Gate) Check(authorization string) error {
	if !g.enabled {
		return nil
	}

	const scheme = "Bearer "
	if !strings.HasPrefix(authorization, scheme) {
		return ErrUnauthorized
	}

	return g.Verify(strings.TrimPrefix(authorization, scheme))
}

// Verify validates a raw token string against the configured secret,
// algorithm, and claims.
func (g *Gate) Verify(tokenString string) error {
	if !g.enabled {
		return nil
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, g.opts...)
	if err != nil || !token.Valid {
		return ErrUnauthorized
	}
	return nil
}

// Sign produces a token for the configured secret and algorithm. Used by the
// sign-token helper command and by tests; the server itself never mints
// tokens.
func Sign(cfg Config, subject string, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("cannot sign token: no secret configured")
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = AlgHS256
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return "", fmt.Errorf("unsupported auth algorithm %q", alg)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if subject != "" {
		claims["sub"] = subject
	}
	if cfg.Audience != "" {
		claims["aud"] = cfg.Audience
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}

	return jwt.NewWithClaims(method, claims).SignedString([]byte(cfg.Secret))
}
