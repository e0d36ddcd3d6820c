package wireproto

import "strings"

// ContentTypeForPath returns the media type this protocol uses for a
// given URL path: JSON for ".json" paths, plain text for everything else.
func ContentTypeForPath(path string) string {
	if strings.HasSuffix(path, ".json") {
		return ContentTypeJSON
	}
	return ContentTypeText
}
