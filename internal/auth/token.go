// Package auth issues and validates the short-lived bearer tokens the
// backend hands out on registration.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validity is the lifetime embedded in every issued token.
const Validity = 600 * time.Second

// Claims carries the authenticated Telegram user id.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Issue signs a token for userID valid for the declared window.
func Issue(secret string, userID int64) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(Validity)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return tok.SignedString([]byte(secret))
}

// Decode verifies the signature and expiry and returns the user id.
// Every failure mode (malformed, expired, wrong signature) collapses to
// a single invalid result.
func Decode(secret, token string) (int64, bool) {
	tok, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return 0, false
	}
	cl, ok := tok.Claims.(*Claims)
	if !ok {
		return 0, false
	}
	return cl.UserID, true
}

// Stale reports whether a token should be refreshed, judging only by the
// embedded expiry without verifying the signature. The bot holds no JWT
// secret; it re-registers whenever the claim is missing or past.
func Stale(token string) bool {
	parser := jwt.NewParser()
	tok, _, err := parser.ParseUnverified(token, &Claims{})
	if err != nil {
		return true
	}
	cl, ok := tok.Claims.(*Claims)
	if !ok || cl.ExpiresAt == nil {
		return true
	}
	return !cl.ExpiresAt.After(time.Now())
}
