package credentials

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// memoryStore is an in-memory Store with error injection
type memoryStore struct {
	name   string
	keys   map[string]string
	setErr error
}

func newMemoryStore(name string) *memoryStore {
	return &memoryStore{name: name, keys: make(map[string]string)}
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Set(provider, key string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.keys[provider] = key
	return nil
}

func (m *memoryStore) Get(provider string) (string, error) {
	k, ok := m.keys[provider]
	if !ok {
		return "", ErrNotFound
	}
	return k, nil
}

func (m *memoryStore) Delete(provider string) error {
	if _, ok := m.keys[provider]; !ok {
		return ErrNotFound
	}
	delete(m.keys, provider)
	return nil
}

func TestManagerSetGetDelete(t *testing.T) {
	t.Setenv("HARVESTER_API_KEY", "")
	t.Setenv("BING_SEARCH_API_KEY", "")

	primary := newMemoryStore("primary")
	fallback := newMemoryStore("fallback")
	m := NewManagerWithStores(NewEnvironmentStore(nil), primary, fallback)

	_, err := m.Set(DefaultProvider, "   ")
	assert.ErrorIs(t, err, ErrInvalidKey)

	name, err := m.Set(DefaultProvider, " abcd1234efgh5678 ")
	require.NoError(t, err)
	assert.Equal(t, "primary", name, "the read-only environment store is skipped")
	assert.Empty(t, fallback.keys)

	key, source, err := m.Get(DefaultProvider)
	require.NoError(t, err)
	assert.Equal(t, "abcd1234efgh5678", key)
	assert.Equal(t, "primary", source)

	require.NoError(t, m.Delete(DefaultProvider))
	_, _, err = m.Get(DefaultProvider)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(DefaultProvider), ErrNotFound)
}

func TestManagerFallsBackOnStoreFailure(t *testing.T) {
	broken := newMemoryStore("broken")
	broken.setErr = errors.New("locked")
	fallback := newMemoryStore("fallback")
	m := NewManagerWithStores(broken, fallback)

	name, err := m.Set("bing", "key-value-123456")
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)

	fallback.setErr = errors.New("disk full")
	_, err = m.Set("bing", "other")
	assert.ErrorContains(t, err, "disk full")
}

func TestManagerEnvironmentTakesPrecedence(t *testing.T) {
	t.Setenv("HARVESTER_API_KEY", "")
	t.Setenv("BING_SEARCH_API_KEY", "from-env-0000")

	stored := newMemoryStore("stored")
	stored.keys["bing"] = "from-store-1111"
	m := NewManagerWithStores(NewEnvironmentStore(nil), stored)

	key, source, err := m.Get("bing")
	require.NoError(t, err)
	assert.Equal(t, "from-env-0000", key)
	assert.Equal(t, "environment", source)

	status := m.Status("bing")
	require.Len(t, status, 2)
	assert.True(t, status[0].Present)
	assert.Equal(t, "from...0000", status[0].Masked)
	assert.True(t, status[1].Present)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStore(path, "test_passphrase_123")
	require.NoError(t, err)

	_, err = store.Get("bing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("bing", "super-secret-key"))
	require.NoError(t, store.Set("other", "second-key"))

	key, err := store.Get("bing")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-key", key)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("super-secret-key")), "file must not hold plaintext")

	reopened, err := NewEncryptedFileStore(path, "wrong-passphrase")
	require.NoError(t, err)
	_, err = reopened.Get("bing")
	assert.ErrorContains(t, err, "decrypt")

	require.NoError(t, store.Delete("bing"))
	require.NoError(t, store.Delete("other"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the file is removed with its last key")
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	require.NoError(t, err)
	require.NoError(t, store.Set("bing", "k-123"))

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	require.NoError(t, err)
	key, err := again.Get("bing")
	require.NoError(t, err)
	assert.Equal(t, "k-123", key)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	_, err = store.Get("bing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set("bing", "keyring-key"))
	key, err := store.Get("bing")
	require.NoError(t, err)
	assert.Equal(t, "keyring-key", key)

	require.NoError(t, store.Delete("bing"))
	assert.ErrorIs(t, store.Delete("bing"), ErrNotFound)
}

func TestEnvironmentStoreIsReadOnly(t *testing.T) {
	t.Setenv("CUSTOM_KEY", "env-key")
	store := NewEnvironmentStore(map[string][]string{"custom": {"CUSTOM_KEY"}})

	key, err := store.Get("custom")
	require.NoError(t, err)
	assert.Equal(t, "env-key", key)

	_, err = store.Get("bing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Set("custom", "x"), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("custom"), ErrStoreUnavailable)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "abcd...6789", Mask("abcdef0123456789"))
}

func TestShowKeyGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowKeyGuide(&buf)
	assert.Contains(t, buf.String(), "BING_SEARCH_API_KEY")
}
