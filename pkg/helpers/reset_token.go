package helpers

import (
	"crypto/rand"
	"encoding/hex"
	"net/url"
)

// GenResetToken returns 32 random bytes hex-encoded.
func GenResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ResetLink appends the token as a query parameter to base.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// KeyRateLimit is the redis key of a fixed-window rate limit bucket.
func KeyRateLimit(scope, ip string) string {
	return "ratelimit:" + scope + ":" + ip
}

// KeyCatalog is the redis key of a cached catalog listing.
func KeyCatalog(kind, variant string) string {
	return "catalog:" + kind + ":" + variant
}
