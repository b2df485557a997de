package layout

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/widget"
)

const walk = `
title: Random walk
widgets:
  - id: steps
    kind: slider
    caption: Steps
    props: {min: 10, max: 1000, value: 100}
  - id: chart
    kind: plot
  - id: notes
    kind: markdown
    props:
      text: "**hello**"
`

func TestParse(t *testing.T) {
	l, err := Parse([]byte(walk))
	require.NoError(t, err)

	assert.Equal(t, "Random walk", l.Title)
	assert.Equal(t, []string{"steps", "chart", "notes"}, l.IDs())
	assert.Equal(t, widget.KindSlider, l.Widgets[0].Kind)
	assert.Equal(t, 1000, l.Widgets[0].Props["max"])
	assert.Equal(t, "Steps", l.Widgets[0].Caption)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "duplicate ids",
			doc:  "widgets: [{id: a, kind: slider}, {id: a, kind: number}]",
			want: "duplicate id",
		},
		{
			name: "unknown kind",
			doc:  "widgets: [{id: a, kind: gauge}]",
			want: `unknown kind "gauge"`,
		},
		{
			name: "separator in id",
			doc:  "widgets: [{id: 'a#b', kind: slider}]",
			want: "must not contain #",
		},
		{
			name: "empty id",
			doc:  "widgets: [{kind: slider}]",
			want: "must not be empty",
		},
		{
			name: "reserved pager id",
			doc:  "widgets: [{id: page, kind: text}]",
			want: "reserved for pager events",
		},
		{
			name: "unknown field",
			doc:  "widgets: [{id: a, kind: slider, colour: red}]",
			want: "malformed layout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), errors.ErrCodeLayoutInvalid)
		})
	}
}

func TestEmptyLayoutIsValid(t *testing.T) {
	l, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, l.Widgets)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), errors.ErrCodeLayoutInvalid)
}

func TestDiff(t *testing.T) {
	old, err := Parse([]byte(walk))
	require.NoError(t, err)
	next, err := Parse([]byte(`
widgets:
  - id: steps
    kind: slider
    caption: Steps
    props: {min: 10, max: 1000, value: 100}
  - id: chart
    kind: plot
    caption: Walk
  - id: go
    kind: button
`))
	require.NoError(t, err)

	added, removed := Diff(old, next)
	ids := []string{}
	for _, spec := range added {
		ids = append(ids, spec.ID)
	}
	assert.Equal(t, []string{"chart", "go"}, ids)
	assert.ElementsMatch(t, []string{"chart", "notes"}, removed)

	added, removed = Diff(next, next)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yml")
	require.NoError(t, os.WriteFile(path, []byte(walk), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Layout, 4)
	failed := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(l *Layout, err error) {
			if err != nil {
				failed <- err
				return
			}
			reloaded <- l
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("title: changed\nwidgets: []\n"), 0o644))

	select {
	case l := <-reloaded:
		assert.Equal(t, "changed", l.Title)
	case err := <-failed:
		t.Fatalf("reload failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}

	require.NoError(t, os.WriteFile(path, []byte("widgets: [{id: x, kind: gauge}]"), 0o644))
	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "unknown kind")
	case <-time.After(3 * time.Second):
		t.Fatal("invalid layout not reported")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
