// Package cache provides disk-backed mirrors of favorites, playlist contents
// and folder membership, reconciled lazily against the server.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// FileStore persists one serialized mapping per named flat file. Every save
// rewrites the whole file through a temp file and rename so an interrupted
// process can never leave a partially written cache behind.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads a named mapping into dest. Returns false when the file does not
// exist yet.
func (s *FileStore) Load(name string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to read cache file %s", name)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "failed to parse cache file %s", name)
	}
	return true, nil
}

// Save atomically rewrites a named mapping.
func (s *FileStore) Save(name string, src any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(src)
	if err != nil {
		return errors.Wrapf(err, "failed to encode cache %s", name)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create cache dir")
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write cache file %s", name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "failed to replace cache file %s", name)
	}
	return nil
}
