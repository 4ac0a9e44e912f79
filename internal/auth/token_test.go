package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func newService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret", "king", time.Minute)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestIssueAndAuthenticate(t *testing.T) {
	svc := newService(t)
	token, err := svc.Issue(42, "ROLE_USER", TypeAccess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.UserID != 42 || id.Role != "ROLE_USER" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	svc := newService(t)
	token, _ := svc.Issue(42, "ROLE_USER", TypeRefresh)
	if _, err := svc.Authenticate(token); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	other, _ := NewTokenService("another-secret", "king", time.Minute)
	token, _ := other.Issue(42, "ROLE_USER", TypeAccess)
	if _, err := newService(t).Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	svc := newService(t)
	past := time.Now().Add(-time.Hour)
	claims := Claims{
		UserID: "42",
		Type:   TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "king",
			ExpiresAt: jwt.NewNumericDate(past),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	if _, err := newService(t).Authenticate("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService("  ", "", 0); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context must not carry an identity")
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: 7, Role: "ROLE_USER"})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID != 7 {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	svc := newService(t)
	refresh, _ := svc.Issue(42, "ROLE_USER", TypeRefresh)

	access, err := svc.Refresh(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	id, err := svc.Authenticate(access)
	if err != nil || id.UserID != 42 {
		t.Fatalf("refreshed token unusable: id=%+v err=%v", id, err)
	}

	if _, err := svc.Refresh(access); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
}
