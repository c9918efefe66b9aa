package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Value     string     `yaml:"value"`
	ExpiresAt *time.Time `yaml:"expires_at,omitempty"`
}

// FileMedium persists values to a single YAML document readable only by the owner.
//
// Every write rewrites the document through a temporary file and a rename.
type FileMedium struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	loaded  bool
	entries map[string]fileEntry
}

// NewFileMedium returns a medium backed by path. The file is created on first write.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{
		path:    path,
		now:     time.Now,
		entries: map[string]fileEntry{},
	}
}

// Path returns the backing file path.
func (m *FileMedium) Path() string {
	return m.path
}

func (m *FileMedium) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return "", false, err
	}
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if entry.ExpiresAt != nil && !m.now().Before(*entry.ExpiresAt) {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (m *FileMedium) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return err
	}
	entry := fileEntry{Value: value}
	if ttl > 0 {
		exp := m.now().Add(ttl)
		entry.ExpiresAt = &exp
	}
	m.entries[key] = entry
	return m.flushLocked()
}

func (m *FileMedium) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return err
	}
	changed := false
	for _, key := range keys {
		if _, ok := m.entries[key]; ok {
			delete(m.entries, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return m.flushLocked()
}

func (m *FileMedium) loadLocked() error {
	if m.loaded {
		return nil
	}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		m.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}

	entries := map[string]fileEntry{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrMediumUnavailable, m.path, err)
	}
	m.entries = entries
	m.loaded = true
	return nil
}

func (m *FileMedium) flushLocked() error {
	if len(m.entries) == 0 {
		if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
		}
		return nil
	}

	data, err := yaml.Marshal(m.entries)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrMediumUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".session-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return nil
}
