package platforms

import "strings"

// Slugify derives a URL-safe slug from a display name: lowercase, runs of
// non-alphanumeric characters collapsed to a single hyphen, no leading or
// trailing hyphen. The result is deterministic so slugs stay stable across
// ingestion runs.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSeparator := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSeparator = b.Len() > 0
			continue
		}
		if pendingSeparator {
			b.WriteByte('-')
			pendingSeparator = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
