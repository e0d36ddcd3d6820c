package eventsource

import (
	"context"
	"testing"
	"time"
)

func TestManualSourceNotifyDeliversEvent(t *testing.T) {
	s := NewManualSource(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = s.Run(ctx) }()

	s.Notify("/watched/root/file.txt")

	select {
	case got := <-s.Events():
		if got != "/watched/root/file.txt" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestManualSourceCloseIsIdempotent(t *testing.T) {
	s := NewManualSource(1)
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
