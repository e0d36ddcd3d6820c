package wireproto

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/klauspost/compress/flate"
)

// CompressBody deflates body and returns the compressed bytes along with
// the headers a caller should set on the outgoing request so the peer can
// decompress it. The payload is deflate-compressed but advertised under a
// gzip Content-Encoding header with an explicit uncompressed-length
// header; both client and server honor the header as sent on the wire.
func CompressBody(body []byte) (compressed []byte, headers http.Header, err error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, nil, fmt.Errorf("wireproto: create deflate writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, nil, fmt.Errorf("wireproto: deflate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("wireproto: deflate close: %w", err)
	}

	headers = http.Header{}
	headers.Set(HeaderContentEncoding, ContentEncodingGzip)
	headers.Set(HeaderUncompressedContentLen, strconv.Itoa(len(body)))
	return buf.Bytes(), headers, nil
}

// DecompressBody inflates a deflate-compressed body. uncompressedLen, if
// > 0, is used to preallocate the output buffer from the
// X-Uncompressed-Content-Length header.
func DecompressBody(compressed []byte, uncompressedLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer func() { _ = r.Close() }()

	if uncompressedLen > 0 {
		out := make([]byte, 0, uncompressedLen)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, r); err != nil {
			return nil, fmt.Errorf("wireproto: inflate: %w", err)
		}
		return buf.Bytes(), nil
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wireproto: inflate: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether a request/response carries the
// Content-Encoding header this protocol uses for compressed bodies.
func IsCompressed(h http.Header) bool {
	return h.Get(HeaderContentEncoding) == ContentEncodingGzip
}

// UncompressedLength parses the X-Uncompressed-Content-Length header,
// returning 0 if absent or malformed.
func UncompressedLength(h http.Header) int {
	n, err := strconv.Atoi(h.Get(HeaderUncompressedContentLen))
	if err != nil {
		return 0
	}
	return n
}
