package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"github.com/queryowl/queryowl/internal/logger"
)

const (
	serviceName  = "queryowl"
	keyringUser  = "master-key"
	fallbackFile = "master.key"
)

// Keeper seals and opens connection secrets with a per-machine master key.
// The key lives in the OS keyring; when no keyring backend is available it
// falls back to a 0600 file in the data dir.
type Keeper struct {
	key           []byte
	usingFallback bool
}

// NewKeeper loads the master key, creating one on first use.
func NewKeeper(dataDir string) (*Keeper, error) {
	key, fallback, err := loadOrCreateKey(dataDir)
	if err != nil {
		return nil, err
	}
	if fallback {
		logger.Warn("no OS keyring available, master key stored in file", "path", filepath.Join(dataDir, fallbackFile))
	}
	return &Keeper{key: key, usingFallback: fallback}, nil
}

// IsUsingFallback returns true if the master key is file-backed instead of
// held by the OS keyring.
func (k *Keeper) IsUsingFallback() bool {
	return k.usingFallback
}

// Seal encrypts a plaintext secret for storage.
func (k *Keeper) Seal(plaintext string) (string, error) {
	return Seal(k.key, plaintext)
}

// Open decrypts a stored secret. Legacy plaintext values pass through
// unchanged.
func (k *Keeper) Open(stored string) (string, error) {
	return Open(k.key, stored)
}

// IsSealed reports whether the stored value is an encrypted box.
func (k *Keeper) IsSealed(stored string) bool {
	return IsSealed(stored)
}

func loadOrCreateKey(dataDir string) ([]byte, bool, error) {
	encoded, err := keyring.Get(serviceName, keyringUser)
	switch {
	case err == nil:
		key, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil || len(key) != keySize {
			return nil, false, fmt.Errorf("stored master key is corrupt")
		}
		return key, false, nil

	case errors.Is(err, keyring.ErrNotFound):
		key, genErr := generateKey()
		if genErr != nil {
			return nil, false, genErr
		}
		if setErr := keyring.Set(serviceName, keyringUser, base64.StdEncoding.EncodeToString(key)); setErr != nil {
			return fileKey(dataDir)
		}
		return key, false, nil

	default:
		// Keyring backend unavailable (headless session, locked daemon).
		return fileKey(dataDir)
	}
}

func fileKey(dataDir string) ([]byte, bool, error) {
	path := filepath.Join(dataDir, fallbackFile)

	if data, readErr := os.ReadFile(path); readErr == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(string(data))
		if decodeErr != nil || len(key) != keySize {
			return nil, true, fmt.Errorf("master key file %s is corrupt", path)
		}
		return key, true, nil
	}

	key, err := generateKey()
	if err != nil {
		return nil, true, err
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return nil, true, fmt.Errorf("writing master key file: %w", err)
	}
	return key, true, nil
}

func generateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	return key, nil
}
