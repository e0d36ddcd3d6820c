// Package eventsource abstracts the filesystem-change notification
// boundary: anything that can report "this path's contents just changed"
// under a watched root. The real kernel-event mechanism (inotify/fanotify)
// is one implementation; a manual/test source is another.
package eventsource

import "context"

// Source reports paths whose contents changed under one of the watched
// roots. ManualSource closes Events on Close; FsnotifySource never closes
// it, so callers stop reading on their own shutdown signal.
type Source interface {
	// Run starts watching roots and pushes changed paths to Events until
	// ctx is canceled (FsnotifySource also returns once Close is called).
	Run(ctx context.Context) error
	// Events returns the channel of changed paths.
	Events() <-chan string
	// Close stops the source and releases its resources.
	Close() error
}
