package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// FileStore keeps all entries in a single JSON object on disk so cached
// widget state survives a host restart. Every write rewrites the file
// through a temp file and rename.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
	closed  bool
}

// OpenFileStore loads path, creating an empty store when the file does not
// exist yet.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "file store requires a path")
	}

	fs := &FileStore{path: path, entries: make(map[string]string)}
	if err := fs.Reload(); err != nil {
		return nil, err
	}

	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Reload replaces the in-memory entries with the file's contents. A
// missing file yields an empty store.
func (f *FileStore) Reload() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.mu.Lock()
		f.entries = make(map[string]string)
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheRead, "cannot read cache file", err).
			WithContext("path", f.path)
	}

	entries := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return errors.NewStoreError(errors.ErrCodeCacheMalformed, "cache file is not a JSON object of strings", err).
				WithContext("path", f.path)
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	return nil
}

func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return "", false, errClosed
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errClosed
	}
	prev, had := f.entries[key]
	f.entries[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errClosed
	}
	prev, had := f.entries[key]
	if !had {
		return nil
	}
	delete(f.entries, key)
	if err := f.flushLocked(); err != nil {
		f.entries[key] = prev
		return err
	}
	return nil
}

func (f *FileStore) Keys(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, errClosed
	}
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

func (f *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot serialize cache file", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot create cache directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".widgetsync-cache-*")
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot create temp cache file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot write temp cache file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot close temp cache file", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return errors.NewStoreError(errors.ErrCodeCacheWrite, "cannot replace cache file", err)
	}

	return nil
}
