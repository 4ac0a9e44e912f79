// Package auth validates access tokens and carries the caller's identity
// through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// TypeAccess marks tokens accepted on API requests.
	TypeAccess = "accessToken"
	// TypeRefresh marks tokens only accepted by the refresh endpoint.
	TypeRefresh = "refreshToken"

	// DefaultAccessTTL is the lifetime of issued access tokens.
	DefaultAccessTTL = 30 * time.Minute
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 15 * time.Second
)

var (
	// ErrInvalidToken covers malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("accessToken is invalid")
	// ErrWrongTokenType is returned when a token is used for the other purpose.
	ErrWrongTokenType = errors.New("token is not an access token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Role   string
}

// Claims is the JWT payload.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
}

// NewTokenService creates a service. The secret must not be empty.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
		ttl:    ttl,
		leeway: DefaultLeeway,
	}, nil
}

// Issue signs a token of the given type.
func (s *TokenService) Issue(userID int64, role, tokenType string) (string, error) {
	if userID <= 0 {
		return "", errors.New("user id must be positive")
	}
	now := time.Now().UTC()
	claims := Claims{
		UserID: strconv.FormatInt(userID, 10),
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Authenticate validates an access token and returns its identity.
func (s *TokenService) Authenticate(token string) (Identity, error) {
	return s.identity(token, TypeAccess)
}

// Refresh exchanges a refresh token for a new access token.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	id, err := s.identity(refreshToken, TypeRefresh)
	if err != nil {
		return "", err
	}
	return s.Issue(id.UserID, id.Role, TypeAccess)
}

func (s *TokenService) identity(token, wantType string) (Identity, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != wantType {
		return Identity{}, ErrWrongTokenType
	}
	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad userId claim %q", ErrInvalidToken, claims.UserID)
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}

type identityKey struct{}

// WithIdentity stores the identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity placed by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID > 0
}
