package eventsource

import (
	"context"
	"sync"
)

// ManualSource is a Source driven entirely by explicit Notify calls. Used
// in tests and by any caller wiring in its own change-detection logic
// instead of watching the filesystem directly.
type ManualSource struct {
	events chan string
	once   sync.Once
}

// NewManualSource creates a ManualSource with the given event channel
// buffer size.
func NewManualSource(buffer int) *ManualSource {
	return &ManualSource{events: make(chan string, buffer)}
}

// Run blocks until ctx is canceled; Close does not unblock it.
func (m *ManualSource) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Events returns the channel of changed paths.
func (m *ManualSource) Events() <-chan string { return m.events }

// Notify pushes path onto the event channel, blocking if it is full.
func (m *ManualSource) Notify(path string) {
	m.events <- path
}

// Close closes the event channel. Safe to call more than once.
func (m *ManualSource) Close() error {
	m.once.Do(func() { close(m.events) })
	return nil
}
