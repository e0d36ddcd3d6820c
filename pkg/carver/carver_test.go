package carver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunWalksRootDepthFirst(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	saveQueue := make(chan string, 16)
	c := New([]string{root}, saveQueue, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	seen := map[string]bool{}
	timeout := time.After(time.Second)
loop:
	for {
		select {
		case p := <-saveQueue:
			seen[p] = true
			if len(seen) == 4 {
				cancel()
				break loop
			}
		case <-timeout:
			cancel()
			break loop
		}
	}
	<-done

	for _, want := range []string{root, sub, filepath.Join(root, "a.txt"), filepath.Join(sub, "b.txt")} {
		if !seen[want] {
			t.Fatalf("expected %s to be carved, got %v", want, seen)
		}
	}
}

func TestDirQueueRecursesNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "late")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "c.txt"), []byte("c"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	saveQueue := make(chan string, 16)
	c := New(nil, saveQueue, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.DirQueue() <- sub

	seen := map[string]bool{}
	timeout := time.After(time.Second)
loop:
	for {
		select {
		case p := <-saveQueue:
			seen[p] = true
			if seen[sub] && seen[filepath.Join(sub, "c.txt")] {
				cancel()
				break loop
			}
		case <-timeout:
			cancel()
			break loop
		}
	}
	<-done

	if !seen[filepath.Join(sub, "c.txt")] {
		t.Fatalf("expected late-discovered file to be carved")
	}
}
