package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultProvider names the search provider whose key the CLI manages
const DefaultProvider = "bing"

// Store keeps API keys by provider name
type Store interface {
	// Name identifies the backend in status output
	Name() string
	Set(provider, key string) error
	Get(provider string) (string, error)
	Delete(provider string) error
}

// Errors
var (
	ErrNotFound         = errors.New("api key not found")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Status reports whether one backend holds a key
type Status struct {
	Store   string
	Present bool
	Masked  string
}

// Manager reads keys from its stores in order and writes to the first
// store that accepts them
type Manager struct {
	stores []Store
}

// NewManager builds the default chain: environment, system keychain when
// it works, then an encrypted file under dir
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
	}

	stores := []Store{NewEnvironmentStore(nil)}
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	fs, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores uses the given stores in order
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Set stores key for provider and returns the name of the store used
func (m *Manager) Set(provider, key string) (string, error) {
	key = strings.TrimSpace(key)
	if provider == "" || key == "" {
		return "", ErrInvalidKey
	}

	var lastErr error
	for _, s := range m.stores {
		err := s.Set(provider, key)
		if err == nil {
			return s.Name(), nil
		}
		if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("failed to store api key: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Get returns the first key found for provider and the store it came from
func (m *Manager) Get(provider string) (key, source string, err error) {
	for _, s := range m.stores {
		if k, err := s.Get(provider); err == nil && k != "" {
			return k, s.Name(), nil
		}
	}
	return "", "", fmt.Errorf("%w for provider %s", ErrNotFound, provider)
}

// Delete removes the key from every writable store
func (m *Manager) Delete(provider string) error {
	deleted := false
	var lastErr error
	for _, s := range m.stores {
		switch err := s.Delete(provider); {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete api key: %w", lastErr)
	}
	return fmt.Errorf("%w for provider %s", ErrNotFound, provider)
}

// Status lists every store and whether it has a key for provider
func (m *Manager) Status(provider string) []Status {
	out := make([]Status, 0, len(m.stores))
	for _, s := range m.stores {
		st := Status{Store: s.Name()}
		if k, err := s.Get(provider); err == nil && k != "" {
			st.Present = true
			st.Masked = Mask(k)
		}
		out = append(out, st)
	}
	return out
}

// ConfigDir returns the per-user directory for harvester state, creating it
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "harvester")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "harvester")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "harvester")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "harvester")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Mask hides all but the first and last 4 characters of a key
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
