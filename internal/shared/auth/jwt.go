package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims is the token payload issued after a Google sign-in.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller.
type Identity struct {
	UserID  string
	Email   string
	Name    string
	Picture string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// HMAC signs and verifies HS256 tokens with a shared secret.
type HMAC struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewHMAC builds an HMAC signer. Outside production an empty secret falls
// back to "dev-secret".
func NewHMAC(secret, env string) (*HMAC, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		if env == "production" || env == "prod" {
			return nil, fmt.Errorf("%w: JWT_SECRET required in production", ErrMissingSecret)
		}
		secret = "dev-secret"
	}
	return &HMAC{secret: []byte(secret), ttl: defaultTokenTTL, now: time.Now}, nil
}

// Sign issues a token for id that expires after 24 hours.
func (h *HMAC) Sign(id Identity) (string, error) {
	if id.UserID == "" {
		return "", errors.New("user id is required")
	}
	now := h.now().UTC()
	claims := Claims{
		Email:   id.Email,
		Name:    id.Name,
		Picture: id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

// Verify checks the signature and expiry of an HS256 token.
func (h *HMAC) Verify(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(h.now))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.identity()
}

func (c Claims) identity() (Identity, error) {
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UserID: c.Subject, Email: c.Email, Name: c.Name, Picture: c.Picture}, nil
}

// Chain accepts a token if any of its verifiers does.
type Chain []Verifier

func (c Chain) Verify(token string) (Identity, error) {
	err := ErrInvalidToken
	for _, v := range c {
		id, verr := v.Verify(token)
		if verr == nil {
			return id, nil
		}
		err = verr
	}
	return Identity{}, err
}
