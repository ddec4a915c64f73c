package notebook

import (
	"regexp"
	"strings"
	"unicode"
)

// SanitizeTitle strips control characters and collapses boundary
// whitespace; newlines become single spaces so titles stay one line
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// SanitizeTags trims each tag and drops empties and duplicates, keeping
// first-seen order
func SanitizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SanitizeText strips carriage returns and NUL bytes from free text
func SanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\x00", "")
}

// SanitizeRef strips characters that can never appear in an entry ref
func SanitizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.ReplaceAll(ref, "\x00", "")
	ref = strings.ReplaceAll(ref, "\r", "")
	ref = strings.ReplaceAll(ref, "\n", "")
	return ref
}

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9-]`)
	slugCollapse = regexp.MustCompile(`-+`)
)

const maxSlugLen = 50

// Slugify turns a title into a file-name-safe slug: lowercase
// alphanumerics and hyphens, collapsed and length-capped
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugCollapse.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		slug = strings.TrimRight(slug, "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}
