package notebook

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the parsed YAML header of an entry. Raw keeps the exact
// lines between the fences so field-level updates can rewrite one key and
// leave every other byte untouched.
type Frontmatter struct {
	Fields map[string]interface{}
	Raw    []string
}

// ParseFrontmatter splits text into frontmatter and body. Text without a
// leading fence parses as all-body with empty frontmatter.
func ParseFrontmatter(text string) (Frontmatter, string, error) {
	fm := Frontmatter{Fields: map[string]interface{}{}}

	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return fm, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return fm, text, nil
	}

	fm.Raw = lines[1:end]
	header := strings.Join(fm.Raw, "\n")
	if err := yaml.Unmarshal([]byte(header), &fm.Fields); err != nil {
		return fm, text, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.Fields == nil {
		fm.Fields = map[string]interface{}{}
	}

	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")
	return fm, body, nil
}

// GetString returns a scalar field as string, "" when absent
func (f Frontmatter) GetString(key string) string {
	v, ok := f.Fields[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetStringList returns a field as a list of strings. A bare scalar is a
// one-element list; comma-separated scalars split.
func (f Frontmatter) GetStringList(key string) []string {
	v, ok := f.Fields[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GetTime parses a timestamp field; zero time when absent or unparseable
func (f Frontmatter) GetTime(key string) time.Time {
	s := f.GetString(key)
	if s == "" {
		return time.Time{}
	}
	return parseTime(s)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Field is one ordered frontmatter key/value pair for rendering
type Field struct {
	Key   string
	Value interface{}
}

// yamlHostile are the characters that force the escaped write path
const yamlHostile = ":#[]{}|<>!&*?`'\",@%=\\"

// NeedsEscape reports whether a scalar cannot be written as a plain YAML
// value: hostile characters, boundary whitespace, document sentinels, or
// anything multiline.
func NeedsEscape(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, yamlHostile) {
		return true
	}
	if strings.ContainsAny(s, "\n\r\t") {
		return true
	}
	if s != strings.TrimSpace(s) {
		return true
	}
	if strings.Contains(s, "---") {
		return true
	}
	return false
}

func escapeScalar(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r', 0:
			// dropped; carriage returns and NULs never survive a write
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func renderScalar(v interface{}) string {
	switch val := v.(type) {
	case string:
		if NeedsEscape(val) {
			return escapeScalar(val)
		}
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// RenderFrontmatter builds a complete frontmatter block including fences.
// List values render as dash blocks; hostile scalars are escaped rather
// than handed to an external serializer.
func RenderFrontmatter(fields []Field) string {
	var b strings.Builder
	b.WriteString("---\n")
	for _, f := range fields {
		switch v := f.Value.(type) {
		case []string:
			if len(v) == 0 {
				continue
			}
			b.WriteString(f.Key)
			b.WriteString(":\n")
			for _, item := range v {
				b.WriteString("  - ")
				b.WriteString(renderScalar(item))
				b.WriteByte('\n')
			}
		case nil:
			continue
		default:
			s := renderScalar(v)
			if s == "" {
				continue
			}
			b.WriteString(f.Key)
			b.WriteString(": ")
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	b.WriteString("---\n")
	return b.String()
}

// frontmatterBounds returns the line indexes of the opening and closing
// fences, or (-1, -1) when text has no frontmatter
func frontmatterBounds(lines []string) (int, int) {
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != "---" {
		return -1, -1
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == "---" {
			return 0, i
		}
	}
	return -1, -1
}

func isTopLevelKey(line, key string) bool {
	if !strings.HasPrefix(line, key) {
		return false
	}
	rest := line[len(key):]
	return strings.HasPrefix(rest, ":")
}

// keyBlockEnd returns the index one past the last line belonging to the
// key starting at lines[start]: the key line itself plus any indented
// continuation or dash lines.
func keyBlockEnd(lines []string, start, fence int) int {
	i := start + 1
	for i < fence {
		l := lines[i]
		if l == "" || l[0] == ' ' || l[0] == '\t' {
			i++
			continue
		}
		break
	}
	return i
}

// SetScalarField rewrites one top-level frontmatter key in place, leaving
// every other line byte-identical. Returns the updated text and whether
// the key already existed; when absent the key is inserted before the
// closing fence.
func SetScalarField(text, key string, value interface{}) (string, bool) {
	lines := strings.Split(text, "\n")
	open, fence := frontmatterBounds(lines)
	if open == -1 {
		return text, false
	}

	rendered := key + ": " + renderScalar(value)
	for i := open + 1; i < fence; i++ {
		if isTopLevelKey(lines[i], key) {
			end := keyBlockEnd(lines, i, fence)
			out := append([]string{}, lines[:i]...)
			out = append(out, rendered)
			out = append(out, lines[end:]...)
			return strings.Join(out, "\n"), true
		}
	}

	out := append([]string{}, lines[:fence]...)
	out = append(out, rendered)
	out = append(out, lines[fence:]...)
	return strings.Join(out, "\n"), false
}

// SetListField rewrites a top-level key as a dash block, replacing the
// key's previous block entirely. An empty list removes the key.
func SetListField(text, key string, values []string) (string, bool) {
	lines := strings.Split(text, "\n")
	open, fence := frontmatterBounds(lines)
	if open == -1 {
		return text, false
	}

	var block []string
	if len(values) > 0 {
		block = append(block, key+":")
		for _, v := range values {
			block = append(block, "  - "+renderScalar(v))
		}
	}

	for i := open + 1; i < fence; i++ {
		if isTopLevelKey(lines[i], key) {
			end := keyBlockEnd(lines, i, fence)
			out := append([]string{}, lines[:i]...)
			out = append(out, block...)
			out = append(out, lines[end:]...)
			return strings.Join(out, "\n"), true
		}
	}

	if len(block) == 0 {
		return text, false
	}
	out := append([]string{}, lines[:fence]...)
	out = append(out, block...)
	out = append(out, lines[fence:]...)
	return strings.Join(out, "\n"), false
}

// RemoveTag deletes a single tag value from the tags field, preserving
// the rest of the list. Used to keep status out of the tag set.
func RemoveTag(text, tag string) string {
	fm, _, err := ParseFrontmatter(text)
	if err != nil {
		return text
	}
	tags := fm.GetStringList("tags")
	kept := make([]string, 0, len(tags))
	removed := false
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return text
	}
	out, _ := SetListField(text, "tags", kept)
	return out
}

// SortedKeys is a stable view over a parsed field map, for diagnostics
func (f Frontmatter) SortedKeys() []string {
	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
