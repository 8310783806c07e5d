package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// SealedPrefix marks values written by FieldCipher.Seal.
const SealedPrefix = "enc:"

// FieldCipher seals individual record fields with AES-256-GCM.
type FieldCipher struct {
	gcm cipher.AEAD
}

// NewFieldCipher decodes a base64 32-byte key. An empty key yields a nil cipher,
// which Seal and Open treat as pass-through.
func NewFieldCipher(keyB64 string) (*FieldCipher, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, nil
	}
	k, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, err
	}
	if len(k) != 32 {
		return nil, errors.New("RECORD_ENC_KEY_B64 must decode to 32 bytes")
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{gcm: gcm}, nil
}

// Seal returns "enc:" + base64url(nonce|ciphertext). Empty values stay empty.
func (c *FieldCipher) Seal(plaintext string) (string, error) {
	if c == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := c.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(append(nonce, ct...)), nil
}

// Open reverses Seal. Values without the prefix were stored before a key was
// configured and are returned unchanged.
func (c *FieldCipher) Open(v string) (string, error) {
	if c == nil || !strings.HasPrefix(v, SealedPrefix) {
		return v, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(v, SealedPrefix))
	if err != nil {
		return "", err
	}
	ns := c.gcm.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := c.gcm.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
