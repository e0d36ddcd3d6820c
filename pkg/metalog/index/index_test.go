package index

import "testing"

func TestPutLatestRoundTrip(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Put("host1", "/a.txt", 100, 1000); err != nil {
		t.Fatalf("Put: %v", err)
	}

	off, mtime, ok, err := idx.Latest("host1", "/a.txt")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !ok || off != 100 || mtime != 1000 {
		t.Fatalf("got off=%d mtime=%d ok=%v", off, mtime, ok)
	}
}

func TestPutDoesNotRegressOnOlderMtime(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Put("host1", "/a.txt", 100, 1000); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Put("host1", "/a.txt", 50, 500); err != nil {
		t.Fatalf("Put (older): %v", err)
	}

	off, mtime, _, err := idx.Latest("host1", "/a.txt")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if off != 100 || mtime != 1000 {
		t.Fatalf("expected older write to be ignored, got off=%d mtime=%d", off, mtime)
	}
}

func TestLatestMissingKey(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	_, _, ok, err := idx.Latest("host1", "/missing.txt")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if ok {
		t.Fatalf("expected no entry for missing key")
	}
}
