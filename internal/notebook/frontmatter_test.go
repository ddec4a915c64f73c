package notebook

import (
	"strings"
	"testing"
	"time"
)

const sampleEntry = `---
title: Fix login flow
type: task
status: pending
priority: high
tags:
  - auth
  - backend
created: 2025-03-01T10:00:00Z
depends_on:
  - abcd1234
  - eeee5555
parent_id: ffff9999
---

# Fix login flow

Body text here.
`

func TestParseFrontmatterBasic(t *testing.T) {
	fm, body, err := ParseFrontmatter(sampleEntry)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := fm.GetString("title"); got != "Fix login flow" {
		t.Errorf("title = %q", got)
	}
	if got := fm.GetString("status"); got != "pending" {
		t.Errorf("status = %q", got)
	}
	if got := fm.GetStringList("tags"); len(got) != 2 || got[0] != "auth" {
		t.Errorf("tags = %v", got)
	}
	if got := fm.GetStringList("depends_on"); len(got) != 2 || got[1] != "eeee5555" {
		t.Errorf("depends_on = %v", got)
	}
	if !strings.HasPrefix(body, "# Fix login flow") {
		t.Errorf("body = %q", body)
	}

	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := fm.GetTime("created"); !got.Equal(want) {
		t.Errorf("created = %v, want %v", got, want)
	}
}

func TestParseFrontmatterAbsent(t *testing.T) {
	fm, body, err := ParseFrontmatter("just a note\nwith no header\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fm.Fields) != 0 {
		t.Errorf("fields = %v, want empty", fm.Fields)
	}
	if body != "just a note\nwith no header\n" {
		t.Errorf("body = %q", body)
	}
}

func TestParseFrontmatterUnclosed(t *testing.T) {
	text := "---\ntitle: dangling\nno closing fence\n"
	fm, body, err := ParseFrontmatter(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(fm.Fields) != 0 || body != text {
		t.Errorf("unclosed fence should parse as all-body")
	}
}

func TestNeedsEscape(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"plain title", false},
		{"has: colon", true},
		{"#comment", true},
		{"[bracketed]", true},
		{"back\\slash", true},
		{`quo"ted`, true},
		{"trailing space ", true},
		{" leading", true},
		{"multi\nline", true},
		{"has --- sentinel", true},
		{"", false},
		{"v1.2.3", false},
	}
	for _, c := range cases {
		if got := NeedsEscape(c.in); got != c.want {
			t.Errorf("NeedsEscape(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRenderFrontmatterEscapesHostileValues(t *testing.T) {
	out := RenderFrontmatter([]Field{
		{Key: "title", Value: `Deploy: phase "two"`},
		{Key: "type", Value: "plan"},
		{Key: "depends_on", Value: []string{`re\f"1`, "plain99"}},
	})

	if !strings.Contains(out, `title: "Deploy: phase \"two\""`) {
		t.Errorf("hostile title not escaped:\n%s", out)
	}
	if !strings.Contains(out, `  - "re\\f\"1"`) {
		t.Errorf("hostile ref not escaped:\n%s", out)
	}
	if !strings.Contains(out, "type: plan") {
		t.Errorf("plain value should stay unquoted:\n%s", out)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	cases := []struct {
		key string
		val string
	}{
		{"title", "plain value"},
		{"title", "with: colon"},
		{"title", `embedded "quotes" here`},
		{"title", `back\slash`},
		{"note", "multi\nline value"},
		{"title", "trailing space "},
	}

	for _, c := range cases {
		text := RenderFrontmatter([]Field{{Key: c.key, Value: c.val}})
		fm, _, err := ParseFrontmatter(text + "\nbody\n")
		if err != nil {
			t.Fatalf("round-trip parse of %q: %v\n%s", c.val, err, text)
		}
		want := strings.ReplaceAll(c.val, "\r", "")
		if got := fm.GetString(c.key); got != want {
			t.Errorf("round-trip %q = %q", c.val, got)
		}
	}
}

func TestSetScalarFieldPreservesOtherLines(t *testing.T) {
	updated, existed := SetScalarField(sampleEntry, "status", "in_progress")
	if !existed {
		t.Fatal("status key should exist")
	}

	origLines := strings.Split(sampleEntry, "\n")
	newLines := strings.Split(updated, "\n")
	if len(origLines) != len(newLines) {
		t.Fatalf("line count changed: %d -> %d", len(origLines), len(newLines))
	}
	for i := range origLines {
		if origLines[i] == "status: pending" {
			if newLines[i] != "status: in_progress" {
				t.Errorf("line %d = %q, want status: in_progress", i, newLines[i])
			}
			continue
		}
		if origLines[i] != newLines[i] {
			t.Errorf("line %d changed: %q -> %q", i, origLines[i], newLines[i])
		}
	}
}

func TestSetScalarFieldInsertsWhenAbsent(t *testing.T) {
	updated, existed := SetScalarField(sampleEntry, "feature_id", "auth-rework")
	if existed {
		t.Fatal("feature_id should not exist yet")
	}
	fm, _, err := ParseFrontmatter(updated)
	if err != nil {
		t.Fatalf("parse updated: %v", err)
	}
	if got := fm.GetString("feature_id"); got != "auth-rework" {
		t.Errorf("feature_id = %q", got)
	}
	// untouched fields survive
	if got := fm.GetString("title"); got != "Fix login flow" {
		t.Errorf("title = %q", got)
	}
}

func TestSetListFieldReplacesBlock(t *testing.T) {
	updated, existed := SetListField(sampleEntry, "depends_on", []string{"11112222"})
	if !existed {
		t.Fatal("depends_on should exist")
	}
	fm, _, err := ParseFrontmatter(updated)
	if err != nil {
		t.Fatalf("parse updated: %v", err)
	}
	deps := fm.GetStringList("depends_on")
	if len(deps) != 1 || deps[0] != "11112222" {
		t.Errorf("depends_on = %v, want [11112222]", deps)
	}
	if got := fm.GetString("parent_id"); got != "ffff9999" {
		t.Errorf("parent_id lost: %q", got)
	}
	if !strings.HasSuffix(strings.TrimRight(updated, "\n"), "Body text here.") {
		t.Errorf("body altered:\n%s", updated)
	}
}

func TestSetListFieldEmptyRemovesKey(t *testing.T) {
	updated, existed := SetListField(sampleEntry, "depends_on", nil)
	if !existed {
		t.Fatal("depends_on should exist")
	}
	fm, _, err := ParseFrontmatter(updated)
	if err != nil {
		t.Fatalf("parse updated: %v", err)
	}
	if deps := fm.GetStringList("depends_on"); len(deps) != 0 {
		t.Errorf("depends_on = %v, want removed", deps)
	}
}

func TestRemoveTag(t *testing.T) {
	text := "---\ntitle: x\nstatus: pending\ntags:\n  - pending\n  - auth\n---\nbody\n"
	out := RemoveTag(text, "pending")
	fm, _, err := ParseFrontmatter(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tags := fm.GetStringList("tags")
	if len(tags) != 1 || tags[0] != "auth" {
		t.Errorf("tags = %v, want [auth]", tags)
	}
	if got := fm.GetString("status"); got != "pending" {
		t.Errorf("status field must survive tag strip: %q", got)
	}
}
