// Package crypto holds the primitives the access-control flows are built on.
// Every check in here fails closed.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Number of random bytes in a token. 32 → 256-bit
const TOKEN_SIZE = 32

// Hash returns the hex encoded SHA-256 digest of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TokenDigest is the form a token is persisted in.
func TokenDigest(token string) string {
	return Hash(token)
}

// GenerateToken returns 256 bits of randomness, base64url encoded without padding.
func GenerateToken() (string, error) {
	b := make([]byte, TOKEN_SIZE)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Fingerprint binds a device to its browser and rough network identity
// without storing any of the inputs.
func Fingerprint(userAgent, acceptLanguage, clientIP string) string {
	return Hash(strings.Join([]string{userAgent, acceptLanguage, clientIP}, "|"))
}
