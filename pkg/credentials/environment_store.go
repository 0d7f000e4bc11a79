package credentials

import "os"

// DefaultEnvVars maps providers to the variables holding their keys
var DefaultEnvVars = map[string][]string{
	DefaultProvider: {"HARVESTER_API_KEY", "BING_SEARCH_API_KEY"},
}

// EnvironmentStore reads keys from environment variables. It is read-only.
type EnvironmentStore struct {
	vars map[string][]string
}

// NewEnvironmentStore uses DefaultEnvVars when vars is nil
func NewEnvironmentStore(vars map[string][]string) *EnvironmentStore {
	if vars == nil {
		vars = DefaultEnvVars
	}
	return &EnvironmentStore{vars: vars}
}

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) Set(provider, key string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Get(provider string) (string, error) {
	for _, name := range e.vars[provider] {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", ErrNotFound
}

func (e *EnvironmentStore) Delete(provider string) error {
	return ErrStoreUnavailable
}
