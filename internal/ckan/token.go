package ckan

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry means the token carries no exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// TokenExpiry reads the exp claim of a channel token without verifying its
// signature; the signing key belongs to CKAN. It tells the channel whether a
// cached token is still usable for a reconnect.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse channel token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// TokenUsable reports whether token stays valid for at least margin from now.
// Opaque (non-JWT) tokens and tokens without exp are treated as usable.
func TokenUsable(token string, now time.Time, margin time.Duration) bool {
	if token == "" {
		return false
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return exp.After(now.Add(margin))
}
