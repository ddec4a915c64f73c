package logging

import (
	"strings"
	"sync"
)

// Ring is an in-memory sink holding the most recent log records in ndjson
// form. Dashboards and the runner "logs" command read from it without
// touching disk.
type Ring struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// NewRing creates a ring holding at most capacity records
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{lines: make([]string, capacity)}
}

// Write stores one record; partial lines are kept as-is since zerolog
// writes exactly one record per call
func (r *Ring) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	r.mu.Lock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return len(p), nil
}

// Lines returns the buffered records oldest-first
func (r *Ring) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.next:]...)
	}
	out = append(out, r.lines[:r.next]...)

	trimmed := make([]string, 0, len(out))
	for _, l := range out {
		if l != "" {
			trimmed = append(trimmed, l)
		}
	}
	return trimmed
}

// Len reports how many records are buffered
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.lines)
	}
	return r.next
}
