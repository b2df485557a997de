package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/errors"
)

func openAll(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	fileStore, err := OpenFileStore(filepath.Join(dir, "cache.json"))
	require.NoError(t, err)

	sqliteStore, err := OpenSQLiteStore(ctx, filepath.Join(dir, "cache.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		DriverMemory: NewMemoryStore(),
		DriverFile:   fileStore,
		DriverSQLite: sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "s1", `{"value":5}`))
			require.NoError(t, s.Set(ctx, "d1", `{"value":["B"]}`))

			v, found, err := s.Get(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `{"value":5}`, v)

			require.NoError(t, s.Set(ctx, "s1", `{"value":8}`))
			v, _, err = s.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, `{"value":8}`, v, "last write wins")

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"d1", "s1"}, keys)

			require.NoError(t, s.Delete(ctx, "d1"))
			require.NoError(t, s.Delete(ctx, "never-set"))
			_, found, err = s.Get(ctx, "d1")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type sliderState struct {
		Value float64 `json:"value"`
		Min   float64 `json:"min"`
		Max   float64 `json:"max"`
	}

	var out sliderState
	found, err := LoadJSON(ctx, s, "s1", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SaveJSON(ctx, s, "s1", sliderState{Value: 8, Max: 10}))
	found, err = LoadJSON(ctx, s, "s1", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, sliderState{Value: 8, Max: 10}, out)

	require.NoError(t, s.Set(ctx, "broken", "{not json"))
	found, err = LoadJSON(ctx, s, "broken", &out)
	require.Error(t, err)
	assert.True(t, found)
	assert.True(t, errors.IsStoreError(err))
}

func TestFileStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	first, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "t1", `{"value":"hello"}`))
	require.NoError(t, first.Close())

	second, err := OpenFileStore(path)
	require.NoError(t, err)
	v, found, err := second.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"value":"hello"}`, v)
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	require.NoError(t, fs.Set(ctx, "a", `1`))

	require.NoError(t, os.WriteFile(path, []byte(`{"b":"2"}`), 0o644))
	require.NoError(t, fs.Reload())

	keys, err := fs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)

	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o644))
	err = fs.Reload()
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
}

func TestClosedStoresFail(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Close())

	err := m.Set(ctx, "k", "v")
	require.Error(t, err)
	assert.True(t, errors.IsStoreError(err))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default memory", Config{}, false},
		{"file", Config{Driver: DriverFile, Path: filepath.Join(dir, "c.json")}, false},
		{"sqlite memory", Config{Driver: DriverSQLite, Path: ":memory:"}, false},
		{"file without path", Config{Driver: DriverFile}, true},
		{"unknown driver", Config{Driver: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}
}
