package wireproto

import "testing"

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog, repeated: " +
		"the quick brown fox jumps over the lazy dog")

	compressed, headers, err := CompressBody(original)
	if err != nil {
		t.Fatalf("CompressBody: %v", err)
	}
	if !IsCompressed(headers) {
		t.Fatalf("expected Content-Encoding header to mark body as compressed")
	}

	got, err := DecompressBody(compressed, UncompressedLength(headers))
	if err != nil {
		t.Fatalf("DecompressBody: %v", err)
	}
	if string(got) != string(original) {
		t.Fatalf("round trip mismatch: got %q want %q", got, original)
	}
}

func TestContentTypeForPath(t *testing.T) {
	if ContentTypeForPath("/Meta.json") != ContentTypeJSON {
		t.Errorf("expected JSON content type for .json path")
	}
	if ContentTypeForPath("/Data/abc123") != ContentTypeText {
		t.Errorf("expected text content type for non-.json path")
	}
}
