// ABOUTME: Unverified decoding of the locally stored access token
// ABOUTME: Extracts a display-only identity projection from the payload segment

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrTokenDecode  = errors.New("token decode failed")
	ErrTokenExpired = errors.New("token expired")
)

// Identity is the decoded view of the access token payload. It is a
// NON-AUTHORITATIVE hint for UI purposes only: the signature is never
// verified locally, so nothing here may gate a privileged operation.
// The gateway backend remains the sole authority on identity and expiry.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// DecodeToken parses the payload segment of a compact token without
// verifying its signature. Returns ErrTokenDecode when the token is not a
// well-formed three-segment token or the payload is unreadable.
func DecodeToken(token string) (*Identity, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}

	ident := &Identity{
		Subject: claimString(claims, "sub"),
		Email:   claimString(claims, "email"),
		Name:    claimString(claims, "name"),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ident.ExpiresAt = exp.Time
	}
	return ident, nil
}

// claimString reads a claim that the backend may encode as a string or a
// number (the subject is a numeric user id server-side).
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
