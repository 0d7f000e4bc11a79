package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/models"
)

const maxSlugRunes = 100

// Options configures where and how images are written
type Options struct {
	BaseDirectory      string
	CreateQueryFolders bool
	Overwrite          bool
}

// Manager writes processed images to disk and tracks what it stored
type Manager struct {
	baseDir      string
	queryFolders bool
	overwrite    bool
	stored       map[string]bool
	mu           sync.RWMutex
	logger       logger.Logger
}

// NewManager creates a new storage manager
func NewManager(opts Options, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseDirectory == "" {
		opts.BaseDirectory = "."
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(opts.BaseDirectory, 0755); err != nil {
		return nil, errs.NewStorage("failed to create output directory", err)
	}

	return &Manager{
		baseDir:      opts.BaseDirectory,
		queryFolders: opts.CreateQueryFolders,
		overwrite:    opts.Overwrite,
		stored:       make(map[string]bool),
		logger:       log,
	}, nil
}

// Dir returns the directory images of query are written to
func (m *Manager) Dir(query string) string {
	if !m.queryFolders {
		return m.baseDir
	}
	return filepath.Join(m.baseDir, QuerySlug(query))
}

// Path returns the full path for an image file name under query
func (m *Manager) Path(query, fileName string) string {
	return filepath.Join(m.Dir(query), fileName)
}

// Write stores the image and returns its path. An existing file is kept
// unless overwriting is enabled; either way the path is returned.
func (m *Manager) Write(ctx context.Context, img models.ProcessedImage) (string, error) {
	if img.FileName == "" || filepath.Base(img.FileName) != img.FileName {
		return "", errs.NewStorage(fmt.Sprintf("invalid file name %q", img.FileName), nil)
	}

	dir := m.Dir(img.Reference.SourceQuery)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.NewStorage("failed to create query directory", err)
	}
	path := filepath.Join(dir, img.FileName)

	if !m.overwrite && m.IsStored(path) {
		m.logger.DebugWithFields("image already stored", map[string]interface{}{
			"path": path,
			"url":  img.Reference.URL,
		})
		m.markStored(path)
		return path, nil
	}

	if err := writeAtomic(path, img.Bytes); err != nil {
		return "", err
	}
	m.markStored(path)
	return path, nil
}

// IsStored checks if a file exists at path, either written by this manager
// or left by an earlier run
func (m *Manager) IsStored(path string) bool {
	m.mu.RLock()
	known := m.stored[path]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(path); err == nil {
		m.markStored(path)
		return true
	}
	return false
}

func (m *Manager) markStored(path string) {
	m.mu.Lock()
	m.stored[path] = true
	m.mu.Unlock()
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.baseDir
}

// GetStoredCount returns the number of distinct files known to be stored
func (m *Manager) GetStoredCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stored)
}

// writeAtomic writes through a temporary file in the same directory and
// renames it into place
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.NewStorage("failed to create temporary file", err)
	}
	tempFile := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempFile)
		return errs.NewStorage("failed to write image data", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return errs.NewStorage("failed to close file", closeErr)
	}
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return errs.NewStorage("failed to set file mode", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return errs.NewStorage("failed to rename temporary file", err)
	}
	return nil
}

// QuerySlug turns a search query into a directory name: lowercase letters
// and digits separated by single underscores
func QuerySlug(query string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	slug := b.String()
	if slug == "" {
		return "untitled"
	}
	if runes := []rune(slug); len(runes) > maxSlugRunes {
		slug = strings.TrimRight(string(runes[:maxSlugRunes]), "_")
	}
	return slug
}
