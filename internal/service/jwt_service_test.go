package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	return svc
}

func TestJWTService_IssueVerify(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)

	token, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.Value == "" {
		t.Fatalf("expected token value")
	}
	wantExp := time.Date(2026, 1, 2, 3, 34, 6, 0, time.UTC)
	if !token.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expected exp %v, got %v", wantExp, token.ExpiresAt)
	}
	if token.ExpiresIn() != 1800 {
		t.Fatalf("expected expires_in 1800, got %d", token.ExpiresIn())
	}

	for _, at := range []time.Time{now, now.Add(time.Minute), token.ExpiresAt.Add(-time.Second)} {
		subject, err := svc.Verify(token.Value, at)
		if err != nil {
			t.Fatalf("verify at %v: %v", at, err)
		}
		if subject != "user@example.com" {
			t.Fatalf("unexpected subject %q", subject)
		}
	}
}

func TestJWTService_LifetimeNotShorterThanTTL(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 900_000_000, time.UTC)

	token, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.ExpiresAt.Before(now.Add(30 * time.Minute)) {
		t.Fatalf("exp %v earlier than now+ttl", token.ExpiresAt)
	}
	if _, err := svc.Verify(token.Value, now.Add(30*time.Minute-time.Nanosecond)); err != nil {
		t.Fatalf("token must be valid for the full ttl: %v", err)
	}
	if token.ExpiresIn() != 1800 {
		t.Fatalf("expected expires_in 1800, got %d", token.ExpiresIn())
	}
}

func TestJWTService_ExpiredAtBoundary(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Now()
	token, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, at := range []time.Time{token.ExpiresAt, token.ExpiresAt.Add(time.Hour)} {
		if _, err := svc.Verify(token.Value, at); !errors.Is(err, ErrJWTExpired) {
			t.Fatalf("expected ErrJWTExpired at %v, got %v", at, err)
		}
	}
}

func TestJWTService_TokensAreUnique(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Now()
	a, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	b, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if a.Value == b.Value {
		t.Fatalf("expected distinct tokens for the same instant")
	}
}

func TestJWTService_RejectsTamperedToken(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Now()
	token, err := svc.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token.Value, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Verify(tampered, now); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for tampered token, got %v", err)
	}
}

func TestJWTService_SignatureCheckedBeforeExpiry(t *testing.T) {
	svc := newTestJWTService(t)
	other, err := NewJWTService("other-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	now := time.Now()
	token, err := other.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Verify(token.Value, now.Add(time.Hour)); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign expired token, got %v", err)
	}
}

func TestJWTService_RejectsEmptySecret(t *testing.T) {
	svc, err := NewJWTService("", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	if _, err := svc.Issue("user@example.com", time.Now()); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid on empty secret, got %v", err)
	}
}

func TestJWTService_RejectsUnsupportedAlgorithm(t *testing.T) {
	for _, alg := range []string{"RS256", "none", "ES256"} {
		if _, err := NewJWTService("secret", alg, time.Minute); err == nil {
			t.Fatalf("expected error for algorithm %s", alg)
		}
	}
}

func TestJWTService_RejectsOtherAlgorithm(t *testing.T) {
	hs256 := newTestJWTService(t)
	hs512, err := NewJWTService("secret", "HS512", 30*time.Minute)
	if err != nil {
		t.Fatalf("new jwt service: %v", err)
	}
	now := time.Now()
	token, err := hs512.Issue("user@example.com", now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := hs512.Verify(token.Value, now); err != nil {
		t.Fatalf("expected HS512 service to accept its token, got %v", err)
	}
	if _, err := hs256.Verify(token.Value, now); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for HS512 token on HS256 service, got %v", err)
	}
}

func TestJWTService_RejectsWrongIssuer(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Now().UTC()
	claims := Claims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "other-issuer",
			Subject:   "user@example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.Verify(signed, now); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for wrong issuer, got %v", err)
	}
}

func TestJWTService_RejectsMissingExpiry(t *testing.T) {
	svc := newTestJWTService(t)
	now := time.Now().UTC()
	claims := Claims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   tokenIssuer,
			Subject:  "user@example.com",
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := svc.Verify(signed, now); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for token without exp, got %v", err)
	}
}

func TestJWTService_RejectsGarbage(t *testing.T) {
	svc := newTestJWTService(t)
	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.Verify(raw, time.Now()); !errors.Is(err, ErrJWTInvalid) {
			t.Fatalf("expected ErrJWTInvalid for %q, got %v", raw, err)
		}
	}
}
