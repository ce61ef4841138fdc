package venue

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Credentials holds user supplied venue API credentials keyed by the field
// names the venue's AuthDescriptor declares.
type Credentials map[string]string

const credentialKeyEnv = "TICKERFLOW_CRED_KEY"

// credentialKey derives the 32 byte AES key from the process-wide secret.
// A single process-wide key is a known weakness: all users share one key, so
// a key compromise exposes every stored credential. Per-user key derivation
// is the intended follow-up.
func credentialKey() ([]byte, error) {
	secret := os.Getenv(credentialKeyEnv)
	if secret == "" {
		return nil, fmt.Errorf("%s is not set", credentialKeyEnv)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// EncryptCredentials seals the credential map with AES-256-GCM for at-rest
// storage. The returned string is base64(nonce || ciphertext).
func EncryptCredentials(creds Credentials) (string, error) {
	key, err := credentialKey()
	if err != nil {
		return "", err
	}

	plain, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("init gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredentials reverses EncryptCredentials.
func DecryptCredentials(encoded string) (Credentials, error) {
	key, err := credentialKey()
	if err != nil {
		return nil, err
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}

// ValidateCredentials checks that every field required by the venue's auth
// descriptor is present and non-empty.
func ValidateCredentials(cfg *Config, creds Credentials) error {
	for _, field := range cfg.Auth.CredentialFields {
		if creds[field] == "" {
			return fmt.Errorf("venue %s requires credential field %q", cfg.ID, field)
		}
	}
	return nil
}
