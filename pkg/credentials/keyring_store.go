package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "imageharvester"
	keyringPrefix  = "apikey_"
)

// KeyringStore keeps keys in the system keychain
type KeyringStore struct{}

// NewKeyringStore fails when no keychain is reachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Set(provider, key string) error {
	if provider == "" || key == "" {
		return ErrInvalidKey
	}
	if err := keyring.Set(keyringService, keyringPrefix+provider, key); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Get(provider string) (string, error) {
	key, err := keyring.Get(keyringService, keyringPrefix+provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve from keyring: %w", err)
	}
	return key, nil
}

func (k *KeyringStore) Delete(provider string) error {
	err := keyring.Delete(keyringService, keyringPrefix+provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}
