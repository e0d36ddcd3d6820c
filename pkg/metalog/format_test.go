package metalog

import (
	"reflect"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	r := Record{
		Type: "regular", Inode: 7, Mode: 0644,
		Atime: 100, Ctime: 100, Mtime: 200, Size: 42,
		Owner: "alice", Group: "staff", UID: 1000, GID: 1000,
		Path: "/data/file.txt", Link: "",
		BlockList: []string{"aGFzaDE=", "aGFzaDI="},
	}

	line := EncodeLine(r)
	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if !reflect.DeepEqual(got, r) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, r)
	}
}

func TestEncodeParseRoundTripWithCommaInOwnerName(t *testing.T) {
	r := Record{
		Type: "regular", Inode: 1, Mode: 0600,
		Atime: 1, Ctime: 1, Mtime: 1, Size: 1,
		Owner: "doe, jane", Group: "grp", UID: 1, GID: 1,
		Path: "/x", Link: "",
	}
	line := EncodeLine(r)
	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if got.Owner != r.Owner {
		t.Fatalf("got owner %q, want %q", got.Owner, r.Owner)
	}
}

func TestParseLineSymlink(t *testing.T) {
	r := Record{
		Type: "symlink", Inode: 2, Mode: 0777,
		Atime: 1, Ctime: 1, Mtime: 1, Size: 5,
		Owner: "bob", Group: "bob", UID: 2, GID: 2,
		Path: "/link", Link: "/target",
	}
	line := EncodeLine(r)
	got, err := ParseLine(line)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if got.Link != "/target" {
		t.Fatalf("got link %q", got.Link)
	}
	if len(got.BlockList) != 0 {
		t.Fatalf("expected no block list for symlink, got %v", got.BlockList)
	}
}
