package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/churnshield/pkg"
)

const Issuer = "churnshield"

// Claims carried by a session token.
type Claims struct {
	FullName string `json:"name"`
	jwt.RegisteredClaims
}

// Session is an issued token with the metadata returned to clients.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Claims      Claims
}

// TokenIssuer signs and validates HS256 session tokens.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	denylist Denylist
	now      func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, denylist Denylist) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if denylist == nil {
		denylist = NewMemoryDenylist()
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, denylist: denylist, now: time.Now}
}

// Issue creates a signed token for username.
func (t *TokenIssuer) Issue(username, fullName string) (Session, error) {
	now := t.now()
	claims := Claims{
		FullName: fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: signed, ExpiresAt: claims.ExpiresAt.Time, Claims: claims}, nil
}

// Validate parses tokenStr and checks signature, expiry and revocation.
func (t *TokenIssuer) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, pkg.ErrInvalidToken
	}
	revoked, err := t.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, pkg.ErrTokenRevoked
	}
	return claims, nil
}

// Revoke denylists the token until it would have expired anyway.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return errors.New("claims without expiry")
	}
	ttl := claims.ExpiresAt.Time.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.denylist.Revoke(ctx, claims.ID, ttl)
}
