package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrEmptySecret = errors.New("cookie secret must not be empty")

// Signer produces and checks "value.signature" strings.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) mac(value string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(value))
	return h.Sum(nil)
}

// Sign appends the base64url HMAC-SHA256 of value.
func (s *Signer) Sign(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(s.mac(value))
}

// Verify returns the unsigned value. Any malformed or forged input yields ok=false.
func (s *Signer) Verify(signed string) (value string, ok bool) {
	dot := strings.LastIndex(signed, ".")
	if dot <= 0 || dot == len(signed)-1 {
		return "", false
	}
	value = signed[:dot]

	sig, err := base64.RawURLEncoding.DecodeString(signed[dot+1:])
	if err != nil {
		return "", false
	}
	if !hmac.Equal(sig, s.mac(value)) {
		return "", false
	}
	return value, true
}
