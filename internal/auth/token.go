package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the configured token is past its expiry.
// Handshaking with a stale token would only burn a reconnect cycle on a
// guaranteed rejection.
var ErrTokenExpired = errors.New("bearer token expired")

// Claims are the operator claims carried in the service's bearer token.
type Claims struct {
	OperatorID string `json:"operator_id,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Inspect decodes a token's claims without verifying the signature; the
// server owns the signing secret, the client only needs expiry and identity
// for pre-checks and logging.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	return claims, nil
}

// Source yields the current bearer token for each handshake attempt,
// refusing tokens already past expiry.
type Source struct {
	token string
}

// NewSource creates a token source over a statically configured token.
func NewSource(token string) *Source {
	return &Source{token: token}
}

// Token returns the bearer token, or ErrTokenExpired when its expiry has
// passed. Tokens without parseable claims are passed through untouched; the
// server is the authority on their validity.
func (s *Source) Token() (string, error) {
	claims, err := Inspect(s.token)
	if err != nil {
		return s.token, nil
	}

	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return "", ErrTokenExpired
	}

	return s.token, nil
}
