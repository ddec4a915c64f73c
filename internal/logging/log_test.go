package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestInitJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Str("project", "acme").Msg("poll complete")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not valid JSON: %v (%s)", err, buf.String())
	}
	for _, field := range []string{"timestamp", "level", "message"} {
		if _, ok := rec[field]; !ok {
			t.Errorf("record missing %q field: %s", field, buf.String())
		}
	}
	if rec["message"] != "poll complete" {
		t.Errorf("message = %v, want poll complete", rec["message"])
	}
	if rec["project"] != "acme" {
		t.Errorf("context field project = %v, want acme", rec["project"])
	}
}

func TestInitLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Debug("dropped")
	Info("dropped")
	Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("records below warn should be filtered: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn record should pass: %s", buf.String())
	}
}

func TestExtraSinksReceiveRecords(t *testing.T) {
	var primary bytes.Buffer
	ring := NewRing(8)
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &primary, ExtraSinks: []io.Writer{ring}})

	Info("fan out")

	if !strings.Contains(primary.String(), "fan out") {
		t.Errorf("primary sink missed the record: %s", primary.String())
	}
	if ring.Len() != 1 {
		t.Fatalf("ring.Len = %d, want 1", ring.Len())
	}
	if !strings.Contains(ring.Lines()[0], "fan out") {
		t.Errorf("ring sink missed the record: %v", ring.Lines())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	log := WithComponent("scheduler")
	log.Info().Msg("tick")

	if !strings.Contains(buf.String(), `"component":"scheduler"`) {
		t.Errorf("child logger should carry component field: %s", buf.String())
	}
}

func TestRingKeepsMostRecent(t *testing.T) {
	ring := NewRing(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(ring, "line-%d\n", i)
	}

	lines := ring.Lines()
	if len(lines) != 3 {
		t.Fatalf("Lines len = %d, want 3", len(lines))
	}
	want := []string{"line-2", "line-3", "line-4"}
	for i, l := range lines {
		if l != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, l, want[i])
		}
	}
}
