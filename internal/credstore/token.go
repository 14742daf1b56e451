package credstore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims reads the subject and expiry of a JWT access token without
// verifying its signature; the server remains the authority. ok is false
// for tokens that are not JWTs.
func TokenClaims(token string) (subject string, expiresAt time.Time, ok bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}, false
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.Subject, expiresAt, true
}
