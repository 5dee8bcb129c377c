package auth

import (
	"errors"
	"fmt"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the bearer token claims; the subject is the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HS256 bearer tokens.
type TokenValidator struct {
	secret []byte
	issuer string
}

func NewTokenValidator(cfg models.AuthConfig) (*TokenValidator, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenValidator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}, nil
}

// Validate parses token and returns the caller's identity.
func (v *TokenValidator) Validate(token string) (*AuthContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("invalid token: missing subject")
	}

	return &AuthContext{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Claims: claims,
	}, nil
}

// Sign issues a token for claims. Used by tooling and tests.
func (v *TokenValidator) Sign(claims *Claims) (string, error) {
	if v.issuer != "" && claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
