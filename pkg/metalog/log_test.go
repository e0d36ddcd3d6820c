package metalog

import (
	"context"
	"testing"
)

func TestAppendAndStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	records := []Record{
		{Type: "regular", Inode: 1, Path: "/a.txt", Owner: "u", Group: "g", Mtime: 100},
		{Type: "regular", Inode: 2, Path: "/b.txt", Owner: "u", Group: "g", Mtime: 200},
	}
	var offsets []int64
	for _, r := range records {
		off, err := l.Append(ctx, "host1", r)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		offsets = append(offsets, off)
	}

	var seen []Record
	if err := l.Stream("host1", func(r Record) error {
		seen = append(seen, r)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("got %d records, want 2", len(seen))
	}
	if seen[0].Path != "/a.txt" || seen[1].Path != "/b.txt" {
		t.Fatalf("unexpected order: %+v", seen)
	}

	second, err := l.ReadAt("host1", offsets[1])
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if second.Path != "/b.txt" {
		t.Fatalf("ReadAt got %+v", second)
	}
}

func TestStreamMissingHostReturnsNoError(t *testing.T) {
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	called := false
	if err := l.Stream("nonexistent", func(Record) error { called = true; return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if called {
		t.Fatalf("expected no records for missing host")
	}
}
