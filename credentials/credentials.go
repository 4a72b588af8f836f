// Package credentials keeps the Postgres and Redis passwords used by
// penf-transcripts in ~/.penf-transcripts/credentials.yaml.
//
// Each password is sealed with AES-256-GCM and bound to its secret name. The
// key comes from a KeyProvider: PENF_ENCRYPTION_KEY (64 hex characters) for CI,
// a PENF_PASSPHRASE-derived key on hosts without a keyring, or a random key
// kept in the system keyring.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCredentialsDir  = ".penf-transcripts"
	DefaultCredentialsFile = "credentials.yaml"
)

// Secret names.
const (
	SecretDatabasePassword = "database"
	SecretRedisPassword    = "redis"
)

// Environment variables that take precedence over stored secrets.
const (
	EnvDatabasePassword = "DB_PASSWORD"
	EnvRedisPassword    = "PENF_REDIS_PASSWORD"
)

var secretEnv = map[string]string{
	SecretDatabasePassword: EnvDatabasePassword,
	SecretRedisPassword:    EnvRedisPassword,
}

var (
	ErrNoCredentials    = errors.New("no credentials stored")
	ErrUnknownSecret    = errors.New("unknown secret")
	ErrEncryptionFailed = errors.New("encryption failed")
)

// SecretNames lists every secret in display order.
func SecretNames() []string {
	return []string{SecretDatabasePassword, SecretRedisPassword}
}

// EnvVar returns the environment variable that overrides name.
func EnvVar(name string) (string, error) {
	env, ok := secretEnv[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (must be %s)", ErrUnknownSecret, name, strings.Join(SecretNames(), " or "))
	}
	return env, nil
}

// credentialsFile is the on-disk layout. Secrets hold base64 ciphertexts.
type credentialsFile struct {
	Updated time.Time         `yaml:"updated"`
	Secrets map[string]string `yaml:"secrets"`
}

// Store reads and writes the credentials file.
type Store struct {
	path    string
	aead    cipher.AEAD
	keyDesc string
}

// NewStore opens the store with DefaultKeyProvider.
func NewStore() (*Store, error) {
	provider, err := DefaultKeyProvider()
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreWithKeyProvider(provider)
}

// NewStoreWithKeyProvider opens the store with a specific key.
func NewStoreWithKeyProvider(provider KeyProvider) (*Store, error) {
	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	key, err := provider.Key()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return &Store{path: path, aead: aead, keyDesc: provider.Description()}, nil
}

// KeyDescription says where the encryption key lives.
func (s *Store) KeyDescription() string {
	return s.keyDesc
}

// CredentialsDir is $PENF_CONFIG_DIR, or ~/.penf-transcripts.
func CredentialsDir() (string, error) {
	if dir := os.Getenv("PENF_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultCredentialsDir), nil
}

// CredentialsPath is the credentials file inside CredentialsDir.
func CredentialsPath() (string, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCredentialsFile), nil
}

// Load returns every stored secret, decrypted. It returns ErrNoCredentials
// when there is no file.
func (s *Store) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var f credentialsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	secrets := make(map[string]string, len(f.Secrets))
	for name, sealed := range f.Secrets {
		if _, ok := secretEnv[name]; !ok {
			continue
		}
		plain, err := s.open(name, sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypting %s password: %w", name, err)
		}
		secrets[name] = plain
	}
	return secrets, nil
}

// save encrypts secrets and rewrites the file with mode 0600.
func (s *Store) save(secrets map[string]string) error {
	f := credentialsFile{Updated: time.Now().UTC(), Secrets: make(map[string]string, len(secrets))}
	for name, plain := range secrets {
		sealed, err := s.seal(name, plain)
		if err != nil {
			return fmt.Errorf("encrypting %s password: %w", name, err)
		}
		f.Secrets[name] = sealed
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

// loadOrEmpty is Load with a missing file treated as no secrets.
func (s *Store) loadOrEmpty() (map[string]string, error) {
	secrets, err := s.Load()
	if errors.Is(err, ErrNoCredentials) {
		return map[string]string{}, nil
	}
	return secrets, err
}

// Set stores one secret, keeping the others.
func (s *Store) Set(name, value string) error {
	if _, err := EnvVar(name); err != nil {
		return err
	}
	secrets, err := s.loadOrEmpty()
	if err != nil {
		return err
	}
	secrets[name] = value
	return s.save(secrets)
}

// Unset removes one secret. The file is deleted once it holds nothing.
func (s *Store) Unset(name string) error {
	if _, err := EnvVar(name); err != nil {
		return err
	}
	secrets, err := s.loadOrEmpty()
	if err != nil {
		return err
	}
	delete(secrets, name)
	if len(secrets) == 0 {
		return s.Delete()
	}
	return s.save(secrets)
}

// Get returns a secret, preferring its environment variable. A missing secret
// is "" with no error.
func (s *Store) Get(name string) (string, error) {
	env, err := EnvVar(name)
	if err != nil {
		return "", err
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	secrets, err := s.loadOrEmpty()
	if err != nil {
		return "", err
	}
	return secrets[name], nil
}

// Delete removes the credentials file.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}

// Exists reports whether the credentials file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Lookup resolves a secret for a connection: its environment variable first,
// then the credentials file. Without a credentials file the key provider is
// never consulted, so hosts that only use env vars never touch the keyring.
func Lookup(name string) (string, error) {
	env, err := EnvVar(name)
	if err != nil {
		return "", err
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	path, err := CredentialsPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	store, err := NewStore()
	if err != nil {
		return "", err
	}
	return store.Get(name)
}

// seal encrypts plaintext with a random nonce prefix. The secret name is the
// additional data, so a ciphertext cannot be moved to another entry.
func (s *Store) seal(name, plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(name))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Store) open(name, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], []byte(name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return string(plain), nil
}

// MaskSecret keeps the first and last two characters of longer secrets.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return strings.Repeat("*", len(secret))
	default:
		return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
	}
}
