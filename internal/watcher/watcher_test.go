package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestDebouncerKeepsLastEventPerPath(t *testing.T) {
	d := &Debouncer{
		delay:   20 * time.Millisecond,
		output:  make(chan []ChangeEvent, 1),
		pending: make(map[string]ChangeEvent),
	}

	d.add(ChangeEvent{Type: EventTypeCreated, Path: "/b"})
	d.add(ChangeEvent{Type: EventTypeModified, Path: "/a"})
	d.add(ChangeEvent{Type: EventTypeModified, Path: "/b"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "/a", events[0].Path)
		assert.Equal(t, "/b", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestWatchOnlyReportsWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "layout.yml")
	other := filepath.Join(dir, "other.yml")

	fw, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, fw.AddFile(target))
	require.NoError(t, fw.AddFile(target))

	abs, _ := filepath.Abs(target)
	assert.Equal(t, []string{abs}, fw.Files())

	batches := make(chan []ChangeEvent, 4)
	fw.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(target, []byte("ab"), 0o644))

	select {
	case events := <-batches:
		require.Len(t, events, 1)
		assert.Equal(t, abs, events[0].Path)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestAddFileMissingDirectory(t *testing.T) {
	fw, err := NewFileWatcher(0, nil)
	require.NoError(t, err)
	defer fw.Close()

	err = fw.AddFile(filepath.Join(t.TempDir(), "missing", "layout.yml"))
	assert.Error(t, err)
	assert.Empty(t, fw.Files())
}
