// Package carver implements the depth-first directory traversal that
// seeds the save-queue: every configured root is walked once at startup,
// and any directory newly discovered while saving is pushed onto a
// separate queue the Carver drains after the initial pass, so newly
// created subdirectories still get recursed into.
package carver

import (
	"context"
	"os"
	"path/filepath"

	"github.com/marmos91/vigil/internal/logger"
)

// Carver walks configured roots and feeds file paths to a save-queue.
type Carver struct {
	roots      []string
	saveQueue  chan<- string
	dirQueue   chan string
	queueDepth int
}

// New builds a Carver over roots. saveQueue receives every file/directory
// path discovered; dirQueueDepth bounds the newly-discovered-directory
// backlog.
func New(roots []string, saveQueue chan<- string, dirQueueDepth int) *Carver {
	if dirQueueDepth <= 0 {
		dirQueueDepth = 1024
	}
	return &Carver{
		roots:      roots,
		saveQueue:  saveQueue,
		dirQueue:   make(chan string, dirQueueDepth),
		queueDepth: dirQueueDepth,
	}
}

// DirQueue returns the channel the Sender pushes newly-discovered
// directories onto when it decides a directory needs recursing into.
func (c *Carver) DirQueue() chan<- string { return c.dirQueue }

// Run performs the initial depth-first walk of every configured root,
// then drains the directory queue, walking each newly discovered
// directory in turn, until ctx is canceled or the queue is closed.
func (c *Carver) Run(ctx context.Context) error {
	for _, root := range c.roots {
		if err := c.walk(ctx, root); err != nil {
			return err
		}
	}
	return c.drainDirQueue(ctx)
}

// walk pushes every entry under root (root itself first) onto the
// save-queue in depth-first order.
func (c *Carver) walk(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.WarnCtx(ctx, "carver: skipping unreadable entry", logger.Path(path), logger.Err(err))
			return nil
		}
		select {
		case c.saveQueue <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// drainDirQueue walks every directory pushed onto dirQueue as it arrives.
// Saving a directory may itself enqueue further subdirectories (newly
// created since the initial pass), so this keeps running for the life of
// the process rather than stopping once the queue is momentarily empty;
// it returns only when ctx is canceled or the queue is closed.
func (c *Carver) drainDirQueue(ctx context.Context) error {
	for {
		select {
		case dir, ok := <-c.dirQueue:
			if !ok {
				return nil
			}
			if err := c.walk(ctx, dir); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
