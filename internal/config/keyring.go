package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name s3gear registers in the OS keyring.
const keyringService = "s3gear"

// secretSessionToken is the keyring user name the session token is stored under.
const secretSessionToken = "session_token"

// ErrSecretNotFound is returned by SecretStore.Get when no secret is stored.
var ErrSecretNotFound = errors.New("config: secret not found")

// SecretStore persists individual secrets outside the config file.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringSecrets is the OS keyring SecretStore (Secret Service on Linux,
// Keychain on macOS, Credential Manager on Windows).
type KeyringSecrets struct{}

func (KeyringSecrets) Get(key string) (string, error) {
	v, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrSecretNotFound
	}

	return v, err
}

func (KeyringSecrets) Set(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

func (KeyringSecrets) Delete(key string) error {
	err := keyring.Delete(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrSecretNotFound
	}

	return err
}
