package eventsource

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/vigil/internal/logger"
)

// FsnotifySource watches a set of root directories recursively using
// fsnotify, and reports a path whenever a file under those roots is
// written to (the nearest portable equivalent of "closed after write").
type FsnotifySource struct {
	roots   []string
	watcher *fsnotify.Watcher
	events  chan string
}

// NewFsnotifySource creates a source watching roots. The caller must call
// Run to begin receiving events.
func NewFsnotifySource(roots []string) (*FsnotifySource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("eventsource: create fsnotify watcher: %w", err)
	}

	s := &FsnotifySource{roots: roots, watcher: watcher, events: make(chan string, 256)}
	for _, root := range roots {
		if err := s.addRecursive(root); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *FsnotifySource) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d filepath.DirEntry, err error) error {
		if err != nil {
			logger.Warn("eventsource: skipping unreadable path", logger.Path(path), logger.Err(err))
			return nil
		}
		if d.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				return fmt.Errorf("eventsource: watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// Run drains the fsnotify event stream until ctx is canceled, pushing
// write-completion events onto Events() and adding newly created
// directories to the watch set so nested trees stay covered.
func (s *FsnotifySource) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if err := s.watcher.Add(ev.Name); err != nil {
					logger.Debug("eventsource: add watch failed", logger.Path(ev.Name), logger.Err(err))
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				select {
				case s.events <- ev.Name:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("eventsource: watcher error", logger.Err(err))
		}
	}
}

// Events returns the channel of changed paths.
func (s *FsnotifySource) Events() <-chan string { return s.events }

// Close stops the underlying fsnotify watcher.
func (s *FsnotifySource) Close() error {
	return s.watcher.Close()
}

var _ Source = (*FsnotifySource)(nil)
