package note

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"stickies/log"
)

const watchSettle = 100 * time.Millisecond

// Watch calls onChange when another program modifies the document's file.
// Writes made through Save are not reported. Watch returns once the watcher
// is running; it stops when ctx is done.
func Watch(ctx context.Context, doc *Document, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(doc.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	go watchLoop(ctx, watcher, doc, onChange)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, doc *Document, onChange func()) {
	defer watcher.Close()

	// editors write in bursts; wait for the file to settle before comparing
	settle := time.NewTimer(watchSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(doc.Path()) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			settle.Reset(watchSettle)

		case <-settle.C:
			if doc.ChangedOnDisk() {
				log.Warnf("note changed on disk: %s", doc.Path())
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("note watcher error: %v", err)
		}
	}
}
