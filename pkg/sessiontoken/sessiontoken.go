// Package sessiontoken mints and verifies the transport-level session token.
//
// The token is an HS256-signed JWT whose only payload is the opaque session id;
// all identity, tenant and impersonation state lives in the durable session
// record, never in the token itself. The signature only guards against cookie
// tampering, it does not carry authorization.
package sessiontoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("sessiontoken: invalid token")
	ErrExpiredToken = errors.New("sessiontoken: token expired")
)

// Codec signs and parses session tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	issuer string
}

func NewCodec(secret []byte, issuer string) *Codec {
	return &Codec{secret: secret, issuer: issuer}
}

type claims struct {
	jwt.RegisteredClaims
}

// Mint produces a signed token carrying sessionID as the subject. The ttl is a
// hard upper bound on token validity; inactivity timeout is enforced separately
// against the durable session record.
func (c *Codec) Mint(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sessiontoken: signing failed: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry and returns the embedded session id.
func (c *Codec) Parse(raw string) (string, error) {
	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	},
		jwt.WithIssuer(c.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	if parsed.Subject == "" {
		return "", ErrInvalidToken
	}
	return parsed.Subject, nil
}
