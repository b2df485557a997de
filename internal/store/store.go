// Package store provides the page-scoped key-value cache that widgets
// mirror their state into. Values are JSON text keyed by widget id.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// Store is the key-value capability injected into every widget.
type Store interface {
	// Get returns the value stored under key. A missing key is not an
	// error: found is false.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config selects and configures a Store implementation.
type Config struct {
	Driver string
	Path   string
}

// Open builds the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile:
		return OpenFileStore(cfg.Path)
	case DriverSQLite:
		return OpenSQLiteStore(ctx, cfg.Path)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeUnknownDriver,
			fmt.Sprintf("unknown store driver %q (want memory, file or sqlite)", cfg.Driver))
	}
}

// LoadJSON reads key and unmarshals it into out. Numbers held in
// interface-typed fields come back as int64 when integral and float64
// otherwise, matching what the codec produces. It reports found=false
// with a nil error on a cache miss. A stored value that is not valid JSON
// for out is returned as a store error.
func LoadJSON(ctx context.Context, s Store, key string, out any) (bool, error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return true, errors.NewStoreError(errors.ErrCodeCacheMalformed,
			"cached entry is not valid JSON for this widget", err).WithWidget(key)
	}
	normalizeValue(reflect.ValueOf(out))

	return true, nil
}

// SaveJSON marshals v and stores it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeCacheWrite,
			"cannot serialize state", err).WithWidget(key)
	}

	return s.Set(ctx, key, string(b))
}
