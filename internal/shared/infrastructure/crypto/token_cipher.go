// Package crypto seals OAuth tokens before they reach storage. Rows in
// oauth_credentials never hold plaintext tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// keyBytes is the AES-256 key length after base64 decoding.
const keyBytes = 32

// TokenCipher seals and opens token material.
type TokenCipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// AESGCM seals tokens with AES-256-GCM. Each Seal draws a fresh random
// nonce, prefixed to the output so Open can recover it.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds an AESGCM from the base64 key carried in
// CALSYNC_ENCRYPTION_KEY.
func NewAESGCM(encodedKey string) (*AESGCM, error) {
	if encodedKey == "" {
		return nil, errors.New("CALSYNC_ENCRYPTION_KEY is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("encryption key must decode to %d bytes, got %d", keyBytes, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce || ciphertext.
func (c *AESGCM) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("draw nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed token. Tampered or truncated input fails
// authentication and returns an error.
func (c *AESGCM) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < c.aead.NonceSize() {
		return nil, errors.New("sealed token shorter than nonce")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}
