package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is the iss claim of tokens minted by the credential service.
	Issuer = "auth-service"
	// TokenTTL is the lifetime of an issued token.
	TokenTTL = 24 * time.Hour
)

// Claims is the JWT payload shared by the credential service and the CRM.
type Claims struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller carried in a request context.
type Principal struct {
	ID       string
	Username string
	Role     Role
}

type principalKey struct{}

// GenerateToken signs an HS256 token for u.
func GenerateToken(u User, secret string, now time.Time) (string, error) {
	claims := Claims{
		Name: u.Username,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateToken checks the signature and expiry of tokenString and returns
// the principal it names. Only HMAC-signed tokens are accepted.
func ValidateToken(tokenString, secret string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("invalid token claims: missing subject")
	}
	return Principal{ID: claims.Subject, Username: claims.Name, Role: claims.Role}, nil
}

// FromContext returns the principal stored by the middleware or the
// interceptor.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ID != ""
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Actor names the caller for audit fields, "system" when anonymous.
func Actor(ctx context.Context) string {
	p, ok := FromContext(ctx)
	switch {
	case !ok:
		return "system"
	case p.Username != "":
		return p.Username
	default:
		return p.ID
	}
}
