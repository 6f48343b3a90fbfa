package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	keySize   = 32
	nonceSize = 12
	// minSealedLen is nonce + GCM tag + at least one plaintext byte. Anything
	// shorter cannot be one of our boxes and is treated as legacy plaintext.
	minSealedLen = nonceSize + 16 + 1
)

// Seal encrypts plaintext with AES-256-GCM and returns
// base64(nonce || ciphertext || tag).
func Seal(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values that do not look like a box
// are returned unchanged: profiles written before encryption existed carry
// plaintext secrets, and they must keep working until migration rewrites them.
func Open(key []byte, stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return stored, nil
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether stored decodes to something long enough to be a
// sealed box. A plaintext password that happens to be long valid base64 can
// be misjudged; the original data format accepted that trade-off and stores
// written by this code are always sealed anyway.
func IsSealed(stored string) bool {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false
	}
	return len(data) >= minSealedLen
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}
