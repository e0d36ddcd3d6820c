package metaextract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/vigil/pkg/wireproto"
)

func TestExtractRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := Extract(path, "testhost")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if r.Type != wireproto.FileTypeRegular {
		t.Errorf("Type = %q, want regular", r.Type)
	}
	if r.Size != 5 {
		t.Errorf("Size = %d, want 5", r.Size)
	}
	if r.Hostname != "testhost" {
		t.Errorf("Hostname = %q, want testhost", r.Hostname)
	}
}

func TestExtractSymlinkRecordsTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	r, err := Extract(link, "testhost")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if r.Type != wireproto.FileTypeSymlink {
		t.Errorf("Type = %q, want symlink", r.Type)
	}
	if r.LinkTarget != target {
		t.Errorf("LinkTarget = %q, want %q", r.LinkTarget, target)
	}
}

func TestExcludeListMatchesAndSkipsBadPattern(t *testing.T) {
	el := CompileExcludeList([]string{`\.tmp$`, `(`, `CACHE`})

	if !el.Match("/home/user/file.TMP") {
		t.Errorf("expected case-insensitive match on .tmp$")
	}
	if !el.Match("/home/user/cache/data") {
		t.Errorf("expected case-insensitive match on CACHE")
	}
	if el.Match("/home/user/keep.txt") {
		t.Errorf("expected no match on unrelated path")
	}
}

func TestCompositeKeyChangesOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	os.WriteFile(path, []byte("hello"), 0644)

	r1, err := Extract(path, "host")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	os.WriteFile(path, []byte("hello world, now longer"), 0644)
	r2, err := Extract(path, "host")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if r1.Key() == r2.Key() {
		t.Errorf("expected composite key to change after content/size change")
	}
}
