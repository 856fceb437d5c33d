// Package crypto seals exchange credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"exconnect/pkg/errors"
)

const keySize = 32

// Encryptor seals and opens secrets. Ciphertexts carry their nonce as a prefix.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor accepts a 32-byte key either raw or hex encoded.
func NewEncryptor(key string) (*Encryptor, error) {
	raw := []byte(key)
	if len(key) == 2*keySize {
		if decoded, err := hex.DecodeString(key); err == nil {
			raw = decoded
		}
	}
	if len(raw) != keySize {
		return nil, errors.NewValidationError("CRYPTO_ENCRYPTION_KEY", "key must be 32 bytes or 64 hex characters", len(key))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, errors.Wrap(err, "aes cipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "gcm")
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "read nonce")
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext []byte) (string, error) {
	size := e.aead.NonceSize()
	if len(ciphertext) < size {
		return "", errors.Wrap(errors.ErrInvalidInput, "ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:size], ciphertext[size:], nil)
	if err != nil {
		return "", errors.Wrap(err, "open ciphertext")
	}
	return string(plaintext), nil
}

// EncryptOptional seals s, leaving empty strings empty so optional
// credential fields stay NULL in storage.
func (e *Encryptor) EncryptOptional(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return e.Encrypt(s)
}

// DecryptOptional is the inverse of EncryptOptional.
func (e *Encryptor) DecryptOptional(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	return e.Decrypt(b)
}
