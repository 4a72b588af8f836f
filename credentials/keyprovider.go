package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"
)

// Environment variables consulted by DefaultKeyProvider, in priority order.
const (
	EnvEncryptionKey = "PENF_ENCRYPTION_KEY"
	EnvPassphrase    = "PENF_PASSPHRASE"
)

const (
	keyringService = "penf-transcripts"
	keyringUser    = "encryption-key"

	// keyLength selects AES-256.
	keyLength  = 32
	saltLength = 16

	// saltFile sits next to the credentials file.
	saltFile = "credentials.salt"
)

// Argon2id parameters for passphrase-derived keys.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// ErrKeyringUnavailable indicates the system keyring could not be used.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// KeyProvider supplies the key that encrypts stored passwords.
type KeyProvider interface {
	Key() ([]byte, error)
	Description() string
}

// EnvKey reads a hex-encoded key from the named environment variable.
type EnvKey string

// Key decodes the variable's value.
func (e EnvKey) Key() ([]byte, error) {
	v := os.Getenv(string(e))
	if v == "" {
		return nil, fmt.Errorf("environment variable %s not set", string(e))
	}
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid key in %s: %w", string(e), err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("key in %s must be %d bytes, got %d", string(e), keyLength, len(key))
	}
	return key, nil
}

func (e EnvKey) Description() string {
	return "environment variable " + string(e)
}

// PassphraseKey derives the key from a passphrase with Argon2id. It is the
// fallback for hosts without a keyring.
type PassphraseKey struct {
	Passphrase string
	Salt       []byte
}

// Key derives the key. The same passphrase and salt always give the same key.
func (p PassphraseKey) Key() ([]byte, error) {
	if p.Passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if len(p.Salt) == 0 {
		return nil, errors.New("salt is required")
	}
	return argon2.IDKey([]byte(p.Passphrase), p.Salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
}

func (p PassphraseKey) Description() string {
	return "passphrase (Argon2id)"
}

// KeyringKey keeps a random key in the system keyring, creating it on first use.
type KeyringKey struct{}

// Key returns the stored key, replacing a missing or malformed one.
func (KeyringKey) Key() ([]byte, error) {
	stored, err := keyring.Get(keyringService, keyringUser)
	switch {
	case err == nil:
		if key, decErr := hex.DecodeString(stored); decErr == nil && len(key) == keyLength {
			return key, nil
		}
	case !errors.Is(err, keyring.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	if err := keyring.Set(keyringService, keyringUser, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("%w: storing key: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

func (KeyringKey) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "system keyring (Secret Service)"
	}
}

// DefaultKeyProvider picks PENF_ENCRYPTION_KEY, then PENF_PASSPHRASE, then the
// system keyring.
func DefaultKeyProvider() (KeyProvider, error) {
	if os.Getenv(EnvEncryptionKey) != "" {
		return EnvKey(EnvEncryptionKey), nil
	}

	if pass := os.Getenv(EnvPassphrase); pass != "" {
		salt, err := loadOrCreateSalt()
		if err != nil {
			return nil, err
		}
		return PassphraseKey{Passphrase: pass, Salt: salt}, nil
	}

	if _, err := (KeyringKey{}).Key(); err != nil {
		if errors.Is(err, ErrKeyringUnavailable) {
			return nil, fmt.Errorf("set %s or %s: %w", EnvEncryptionKey, EnvPassphrase, err)
		}
		return nil, err
	}
	return KeyringKey{}, nil
}

// loadOrCreateSalt reads the passphrase salt, writing a random one on first use.
func loadOrCreateSalt() ([]byte, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, saltFile)

	data, err := os.ReadFile(path)
	if err == nil {
		salt, decErr := hex.DecodeString(string(data))
		if decErr != nil || len(salt) == 0 {
			return nil, fmt.Errorf("invalid salt in %s", path)
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading salt: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(salt)), 0600); err != nil {
		return nil, fmt.Errorf("writing salt: %w", err)
	}
	return salt, nil
}
