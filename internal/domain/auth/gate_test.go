package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGate_DisabledAllowsEverything(t *testing.T) {
	t.Parallel()

	gate, err := NewGate(Config{})
	if err != nil {
		t.Fatalf("NewGate() error: %v", err)
	}

	for _, header := range []string{"", "Bearer garbage", "Basic dXNlcg==", "nonsense"} {
		if err := gate.Check(header); err != nil {
			t.Errorf("Check(%q) = %v, want nil with no secret configured", header, err)
		}
	}
}

func TestGate_RejectionMatrix(t *testing.T) {
	t.Parallel()

	cfg := Config{Secret: "s3cret", Algorithm: AlgHS256}
	gate, err := NewGate(cfg)
	if err != nil {
		t.Fatalf("NewGate() error: %v", err)
	}

	wrongSecret, err := Sign(Config{Secret: "other", Algorithm: AlgHS256}, "c", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	expired, err := Sign(cfg, "c", -time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"non-bearer scheme", "Basic dXNlcjpwYXNz"},
		{"malformed token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired token", "Bearer " + expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := gate.Check(tt.header); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Check() = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestGate_AcceptsValidToken(t *testing.T) {
	t.Parallel()

	cfg := Config{Secret: "s3cret", Algorithm: AlgHS256, Audience: "crmbridge", Issuer: "ops"}
	gate, err := NewGate(cfg)
	if err != nil {
		t.Fatalf("NewGate() error: %v", err)
	}

	token, err := Sign(cfg, "client-1", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if err := gate.Check("Bearer " + token); err != nil {
		t.Errorf("Check() = %v, want nil for valid token", err)
	}
}

func TestGate_ClaimMismatch(t *testing.T) {
	t.Parallel()

	gate, err := NewGate(Config{Secret: "s3cret", Audience: "crmbridge"})
	if err != nil {
		t.Fatalf("NewGate() error: %v", err)
	}

	// Same secret, wrong audience.
	token, err := Sign(Config{Secret: "s3cret", Audience: "someone-else"}, "c", time.Minute)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if err := gate.Check("Bearer " + token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Check() = %v, want ErrUnauthorized for audience mismatch", err)
	}
}

func TestGate_RejectsAlgorithmConfusion(t *testing.T) {
	t.Parallel()

	gate, err := NewGate(Config{Secret: "s3cret", Algorithm: AlgHS256})
	if err != nil {
		t.Fatalf("NewGate() error: %v", err)
	}

	// Token signed with the right secret but a different HMAC variant
	// must be rejected by the algorithm allowlist.
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}

	if err := gate.Check("Bearer " + token); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Check() = %v, want ErrUnauthorized for disallowed algorithm", err)
	}
}

func TestNewGate_UnknownAlgorithm(t *testing.T) {
	t.Parallel()

	if _, err := NewGate(Config{Secret: "s", Algorithm: "RS256"}); err == nil {
		t.Error("NewGate() accepted non-HMAC algorithm, want error")
	}
}
