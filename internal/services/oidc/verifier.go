package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token missing subject claim")

// Verifier verifies bearer tokens against one issuer's key set
type Verifier struct {
	jwks     *JWKSManager
	issuer   string
	jwksURL  string
	audience string
}

// NewVerifier creates a new JWT verifier. An empty audience skips the aud check.
func NewVerifier(jwks *JWKSManager, issuer, jwksURL, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		issuer:   issuer,
		jwksURL:  jwksURL,
		audience: audience,
	}
}

// Verify checks the signature, expiry, issuer and audience of tokenString
// and returns its claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}

	claims := &models.JWTClaims{
		Sub:       token.Subject(),
		Iss:       token.Issuer(),
		ExpiresAt: token.Expiration(),
		IssuedAt:  token.IssuedAt(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.Get("email"); ok {
		claims.Email, _ = email.(string)
	}
	if name, ok := token.Get("name"); ok {
		claims.Name, _ = name.(string)
	}
	return claims, nil
}
