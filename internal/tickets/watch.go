package tickets

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeType is the kind of change Watch reports.
type ChangeType string

const (
	ChangeSaved   ChangeType = "saved"
	ChangeRemoved ChangeType = "removed"
)

// Change describes a ticket file that appeared, changed or went away.
type Change struct {
	Type ChangeType
	Slug string
}

// Watch calls fn for every ticket saved into or removed from the store
// until ctx is done. Temp files written by Save are ignored; the rename
// that publishes them is reported as a save.
func (s *FileStore) Watch(ctx context.Context, fn func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if c, ok := toChange(event); ok {
				fn(c)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[tickets] watcher error: %v", err)
		}
	}
}

func toChange(event fsnotify.Event) (Change, bool) {
	name := filepath.Base(event.Name)
	if !isTicketFile(name) {
		return Change{}, false
	}
	slug := strings.TrimSuffix(name, ".json")

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		return Change{Type: ChangeSaved, Slug: slug}, true
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Change{Type: ChangeRemoved, Slug: slug}, true
	default:
		return Change{}, false
	}
}
