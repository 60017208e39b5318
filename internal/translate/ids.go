package translate

import "strings"

// newID mirrors the Anthropic SDK's id shape: a short prefix plus 24 hex
// characters. uuid.New() yields 32 hex chars once hyphens are stripped; we
// truncate to the 24 the wire format expects.
func newID(prefix string) string {
	id := newUUIDHex()
	if len(id) > 24 {
		id = id[:24]
	}
	return prefix + id
}

func newUUIDHex() string {
	u := newUUID()
	return strings.ReplaceAll(u, "-", "")
}
