// Package crypto seals individual column values at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SealedPrefix marks a stored value as sealed by a FieldSealer.
const SealedPrefix = "enc:v1:"

var (
	ErrInvalidKey = errors.New("encryption key must be 32 bytes, base64 encoded")
	ErrNoKey      = errors.New("value is sealed but no encryption key is configured")
	ErrTampered   = errors.New("sealed value failed authentication")
)

// FieldSealer encrypts single text fields with AES-256-GCM. The binding
// passed to Seal is authenticated but not stored, so a sealed value only
// opens again for the same row.
type FieldSealer struct {
	aead cipher.AEAD
}

// NewFieldSealer parses a base64 32-byte key. An empty key returns a nil
// sealer, which passes plain values through and refuses sealed ones.
func NewFieldSealer(encodedKey string) (*FieldSealer, error) {
	if encodedKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldSealer{aead: aead}, nil
}

// Seal returns the stored form of value. Empty values stay empty.
func (s *FieldSealer) Seal(value string, binding []byte) (string, error) {
	if s == nil || value == "" {
		return value, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), binding)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the prefix were written before a key
// was configured and are returned as they are.
func (s *FieldSealer) Open(stored string, binding []byte) (string, error) {
	encoded, ok := strings.CutPrefix(stored, SealedPrefix)
	if !ok {
		return stored, nil
	}
	if s == nil {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTampered, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", ErrTampered
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], binding)
	if err != nil {
		return "", ErrTampered
	}
	return string(plain), nil
}

// IsSealed reports whether stored was produced by Seal.
func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, SealedPrefix)
}
