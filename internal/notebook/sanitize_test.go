package notebook

import "testing"

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"  padded  ", "padded"},
		{"tab\there", "tab here"},
		{"multi\nline", "multi line"},
		{"ctrl\x00\x07chars", "ctrlchars"},
	}
	for _, c := range cases {
		if got := SanitizeTitle(c.in); got != c.want {
			t.Errorf("SanitizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeTags(t *testing.T) {
	got := SanitizeTags([]string{" auth ", "", "auth", "perf", "  "})
	want := []string{"auth", "perf"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizeText(t *testing.T) {
	if got := SanitizeText("a\r\nb\x00c"); got != "a\nbc" {
		t.Errorf("SanitizeText = %q", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Fix Login Flow", "fix-login-flow"},
		{"What?! A (weird) title...", "what-a-weird-title"},
		{"--edge--case--", "edge-case"},
		{"", "untitled"},
		{"ALL CAPS", "all-caps"},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	long := Slugify("this is a very long title that should be truncated to the maximum slug length limit")
	if len(long) > maxSlugLen {
		t.Errorf("slug too long: %d chars", len(long))
	}
}
