package layout

import (
	"context"

	"github.com/conneroisu/widgetsync/internal/logging"
	"github.com/conneroisu/widgetsync/internal/watcher"
)

// ReloadFunc receives the re-read layout, or the error that kept it from
// loading.
type ReloadFunc func(l *Layout, err error)

// Watch re-reads the layout at path after every change and hands it to
// fn. It blocks until ctx ends.
func Watch(ctx context.Context, path string, logger logging.Logger, fn ReloadFunc) error {
	fw, err := watcher.NewFileWatcher(watcher.DefaultDelay, logger)
	if err != nil {
		return err
	}
	if err := fw.AddFile(path); err != nil {
		_ = fw.Close()
		return err
	}

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, ev := range events {
			if ev.Type == watcher.EventTypeDeleted {
				continue
			}
			fn(Load(ev.Path))
		}
		return nil
	})
	return fw.Run(ctx)
}
