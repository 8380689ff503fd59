package auth

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/qcdesk/qc/internal/lockfile"
)

// Store persists secrets by key.
type Store interface {
	// Get returns the value and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(key string) error
}

// tokenFile is the on-disk layout of a FileStore.
type tokenFile struct {
	Entries map[string]string `toml:"entries"`
}

// FileStore keeps entries in a TOML file readable only by the owner. Writes
// hold an advisory file lock so a `qc serve` process and a one-shot command
// do not lose each other's updates.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Entries[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	return s.update(func(entries map[string]string) bool {
		entries[key] = value
		return true
	})
}

func (s *FileStore) Delete(key string) error {
	return s.update(func(entries map[string]string) bool {
		if _, ok := entries[key]; !ok {
			return false
		}
		delete(entries, key)
		return true
	})
}

// update runs a locked read-modify-write; fn reports whether to save.
func (s *FileStore) update(fn func(entries map[string]string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := lockfile.Acquire(s.path)
	if err != nil {
		return fmt.Errorf("lock token store: %w", err)
	}
	defer func() { _ = lock.Release() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if !fn(doc.Entries) {
		return nil
	}
	return s.save(doc)
}

func (s *FileStore) load() (*tokenFile, error) {
	doc := &tokenFile{}
	data, err := os.ReadFile(s.path) // #nosec G304 -- path comes from config
	if err == nil {
		if err := toml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}
	return doc, nil
}

func (s *FileStore) save(doc *tokenFile) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
