package entries

import (
	"strings"

	"github.com/CLIAIBRAIN/internal/brainerr"
)

// Section is one markdown heading with its position. Line numbers are
// 1-based over the entry body.
type Section struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

// ParseSections lists the h2 and h3 headers of a markdown body
func ParseSections(body string) []Section {
	var sections []Section
	for i, line := range strings.Split(body, "\n") {
		level, title := headerOf(line)
		if level == 2 || level == 3 {
			sections = append(sections, Section{Title: title, Level: level, Line: i + 1})
		}
	}
	return sections
}

// ExtractSection returns the content of the named section. Matching is
// case-insensitive on h2 and h3 headers. The section ends at the next
// header of the same or higher level; with includeSubsections false it
// also ends at any deeper header. Trailing blank lines are trimmed.
func ExtractSection(body, title string, includeSubsections bool) (string, error) {
	lines := strings.Split(body, "\n")

	start := -1
	level := 0
	for i, line := range lines {
		l, t := headerOf(line)
		if (l == 2 || l == 3) && strings.EqualFold(t, title) {
			start = i
			level = l
			break
		}
	}
	if start == -1 {
		return "", brainerr.NotFoundf("section not found: %s", title)
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		l, _ := headerOf(lines[i])
		if l == 0 {
			continue
		}
		if l <= level || !includeSubsections {
			end = i
			break
		}
	}

	content := lines[start+1 : end]
	for len(content) > 0 && strings.TrimSpace(content[len(content)-1]) == "" {
		content = content[:len(content)-1]
	}
	for len(content) > 0 && strings.TrimSpace(content[0]) == "" {
		content = content[1:]
	}
	return strings.Join(content, "\n"), nil
}

// headerOf returns the header level and title of a markdown line, level
// 0 for non-headers
func headerOf(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(trimmed[level+1:])
}
