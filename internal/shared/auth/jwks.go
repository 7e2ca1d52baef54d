package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKS verifies RS256/ES256 tokens against a remote key set. Keys are cached
// and refreshed by keyfunc.
type JWKS struct {
	keys keyfunc.Keyfunc
}

// NewJWKS fetches the key set at url.
func NewJWKS(ctx context.Context, url string) (*JWKS, error) {
	if url == "" {
		return nil, errors.New("jwks url is required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("create jwks client: %w", err)
	}
	return &JWKS{keys: kf}, nil
}

// NewJWKSFromKeyfunc wraps an existing key source.
func NewJWKSFromKeyfunc(kf keyfunc.Keyfunc) *JWKS {
	return &JWKS{keys: kf}
}

func (v *JWKS) Verify(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, v.keys.Keyfunc, jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.identity()
}
