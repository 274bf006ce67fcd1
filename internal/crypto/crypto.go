// internal/crypto/crypto.go
//
// This package provides cryptographic functionality for sshTerm.
// It handles encryption and decryption of secrets stored at rest
// (session passwords) using AES-256-GCM with a key derived from the
// user's master passphrase.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Cipher represents an AES-256-GCM cipher bound to a derived key.
type Cipher struct {
	key []byte
}

// NewCipher derives a 32-byte AES-256 key from the passphrase with
// SHA-256 and returns a Cipher using it. Any passphrase length is
// accepted; the derivation always yields a full-size key.
func NewCipher(passphrase string) *Cipher {
	key := sha256.Sum256([]byte(passphrase))
	return &Cipher{key: key[:]}
}

// Encrypt seals the plaintext with AES-256-GCM and returns a
// hex-encoded blob of nonce||ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails when the blob is malformed or was
// sealed with a different key.
func (c *Cipher) Decrypt(blob string) (string, error) {
	raw, err := hex.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(raw) < aesGCM.NonceSize() {
		return "", errors.New("encrypted data too short")
	}

	nonce, ciphertext := raw[:aesGCM.NonceSize()], raw[aesGCM.NonceSize():]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
