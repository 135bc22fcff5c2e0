package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	fileSaltSize  = 16
	ivSize        = 12
	tagSize       = 16
	fileKeyInfo   = "csv-file"
)

var (
	ErrInvalidMasterKey = errors.New("encryption master key must decode to 32 bytes")
	// ErrDecrypt is returned for any malformed input or authentication failure.
	ErrDecrypt = errors.New("decryption failed")
)

// Sealed is an encrypted payload with the parameters needed to reverse it.
// Salt, IV and tag are not secret.
type Sealed struct {
	Ciphertext []byte
	SaltHex    string
	IVHex      string
	TagHex     string
}

// Cipher encrypts payloads with AES-256-GCM under per-file keys derived from
// a shared master key.
type Cipher struct {
	master []byte
}

// NewCipher decodes a base64 master key.
func NewCipher(masterKeyBase64 string) (*Cipher, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err := enc.DecodeString(masterKeyBase64)
		if err == nil && len(key) == masterKeySize {
			return &Cipher{master: key}, nil
		}
	}
	return nil, ErrInvalidMasterKey
}

// DeriveFileKey expands the master key with HKDF-SHA256 over the file salt.
func (c *Cipher) DeriveFileKey(saltHex string) ([]byte, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	key := make([]byte, masterKeySize)
	r := hkdf.New(sha256.New, c.master, salt, []byte(fileKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (c *Cipher) gcm(saltHex string) (cipher.AEAD, error) {
	key, err := c.DeriveFileKey(saltHex)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals payload with a fresh salt and IV.
func (c *Cipher) Encrypt(payload []byte) (*Sealed, error) {
	salt := make([]byte, fileSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	saltHex := hex.EncodeToString(salt)

	gcm, err := c.gcm(saltHex)
	if err != nil {
		return nil, err
	}

	// Seal appends the tag. It is stored separately.
	out := gcm.Seal(nil, iv, payload, nil)
	split := len(out) - tagSize

	return &Sealed{
		Ciphertext: out[:split],
		SaltHex:    saltHex,
		IVHex:      hex.EncodeToString(iv),
		TagHex:     hex.EncodeToString(out[split:]),
	}, nil
}

// Decrypt reverses Encrypt. It never returns partial plaintext.
func (c *Cipher) Decrypt(ciphertext []byte, saltHex, ivHex, tagHex string) ([]byte, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != ivSize {
		return nil, ErrDecrypt
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil || len(tag) != tagSize {
		return nil, ErrDecrypt
	}
	gcm, err := c.gcm(saltHex)
	if err != nil {
		return nil, ErrDecrypt
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}
