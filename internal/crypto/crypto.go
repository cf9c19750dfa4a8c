// Package crypto seals free-text columns at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values written by FieldEncryptor. Values without it are
// rows stored before encryption was enabled and read back unchanged.
const sealedPrefix = "enc:v1:"

// FieldEncryptor seals individual text columns with AES-256-GCM. The column
// name is bound as associated data so a value cannot be moved to another
// column and still open.
type FieldEncryptor struct {
	aead cipher.AEAD
}

// NewFieldEncryptor creates a FieldEncryptor from a base64-encoded 32 byte key.
func NewFieldEncryptor(base64Key string) (*FieldEncryptor, error) {
	if base64Key == "" {
		return nil, fmt.Errorf("encryption key is required")
	}

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM mode: %w", err)
	}

	return &FieldEncryptor{aead: aead}, nil
}

// IsSealed reports whether v was produced by Seal.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

// Seal encrypts plaintext for column. Empty input and already sealed input are
// returned as is, so saving a row twice does not double-encrypt.
func (e *FieldEncryptor) Seal(column, plaintext string) (string, error) {
	if plaintext == "" || IsSealed(plaintext) {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), []byte(column))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Unsealed values pass through.
func (e *FieldEncryptor) Open(column, v string) (string, error) {
	if !IsSealed(v) {
		return v, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", column, err)
	}

	n := e.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("sealed %s too short", column)
	}

	plaintext, err := e.aead.Open(nil, raw[:n], raw[n:], []byte(column))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", column, err)
	}
	return string(plaintext), nil
}
