// Package secrets is the encrypted credential store used to persist broker
// session secrets on accounts. Only sync adapters touch it.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Store encrypts credential payloads into opaque tokens and back.
type Store interface {
	Encrypt(payload []byte) (string, error)
	Decrypt(token string) ([]byte, error)
}

// AESStore is an AES-256-GCM Store keyed from a configured passphrase.
type AESStore struct {
	aead cipher.AEAD
}

// NewAESStore creates a store. The key material is hashed to a fixed-size
// AES-256 key so any non-empty passphrase works.
func NewAESStore(key string) (*AESStore, error) {
	if key == "" {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESStore{aead: aead}, nil
}

// Encrypt implements Store.
func (s *AESStore) Encrypt(payload []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, payload, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt implements Store.
func (s *AESStore) Decrypt(token string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if len(sealed) < s.aead.NonceSize() {
		return nil, errors.New("token too short")
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	payload, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return payload, nil
}
