package deps

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CLIAIBRAIN/internal/types"
)

func task(id, title string, status types.EntryStatus, deps ...string) types.Entry {
	return types.Entry{
		ID:        id,
		Path:      "projects/demo/task/" + id + "-" + title + ".md",
		Title:     title,
		Type:      types.TypeTask,
		Status:    status,
		DependsOn: deps,
	}
}

func find(t *testing.T, r types.ClassificationResult, id string) *types.ClassifiedTask {
	t.Helper()
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i]
		}
	}
	t.Fatalf("task %s not in result", id)
	return nil
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		raw     string
		key     string
		project string
	}{
		{"abcd1234", "abcd1234", ""},
		{"abcd1234.md", "abcd1234", ""},
		{"projects/demo/task/abcd1234-fix-bug.md", "abcd1234-fix-bug", "demo"},
		{"global/task/abcd1234-fix-bug", "abcd1234-fix-bug", ""},
		{"other:abcd1234", "abcd1234", "other"},
		{"other:projects/other/task/abcd1234-x.md", "abcd1234-x", "other"},
		{"  abcd1234  ", "abcd1234", ""},
	}
	for _, tt := range tests {
		got := NormalizeRef(tt.raw)
		if got.Key != tt.key || got.Project != tt.project {
			t.Errorf("NormalizeRef(%q) = {%q %q}, want {%q %q}",
				tt.raw, got.Key, got.Project, tt.key, tt.project)
		}
	}
}

func TestDiamond(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := task("aaaaaaa1", "a", types.StatusCompleted)
	b := task("bbbbbbb1", "b", types.StatusPending, "aaaaaaa1")
	c := task("ccccccc1", "c", types.StatusPending, "aaaaaaa1")
	d := task("ddddddd1", "d", types.StatusPending, "bbbbbbb1", "ccccccc1")
	b.Created = base
	c.Created = base.Add(time.Hour)

	r := Classify([]types.Entry{a, b, c, d})

	if got := find(t, r, "bbbbbbb1").Classification; got != types.ClassReady {
		t.Errorf("b classification = %s, want ready", got)
	}
	if got := find(t, r, "ccccccc1").Classification; got != types.ClassReady {
		t.Errorf("c classification = %s, want ready", got)
	}
	dd := find(t, r, "ddddddd1")
	if dd.Classification != types.ClassWaiting {
		t.Errorf("d classification = %s, want waiting", dd.Classification)
	}
	if len(dd.WaitingOn) != 2 {
		t.Errorf("d waiting_on = %v, want two entries", dd.WaitingOn)
	}

	ready := Ready(r)
	if len(ready) != 2 || ready[0].ID != "bbbbbbb1" || ready[1].ID != "ccccccc1" {
		t.Errorf("ready order wrong: %+v", ready)
	}
	if next := Next(r); next == nil || next.ID != ready[0].ID {
		t.Errorf("next does not match head of ready")
	}
	if len(r.Cycles) != 0 {
		t.Errorf("unexpected cycles: %v", r.Cycles)
	}
}

func TestCycle(t *testing.T) {
	x := task("xxxxxxx1", "x", types.StatusPending, "yyyyyyy1")
	y := task("yyyyyyy1", "y", types.StatusPending, "xxxxxxx1")

	r := Classify([]types.Entry{x, y})

	for _, id := range []string{"xxxxxxx1", "yyyyyyy1"} {
		ct := find(t, r, id)
		if !ct.InCycle {
			t.Errorf("%s not marked in_cycle", id)
		}
		if ct.Classification != types.ClassBlocked {
			t.Errorf("%s classification = %s, want blocked", id, ct.Classification)
		}
		if ct.BlockedByReason != types.ReasonCircularDependency {
			t.Errorf("%s reason = %s, want circular_dependency", id, ct.BlockedByReason)
		}
	}
	if len(r.Cycles) != 1 || len(r.Cycles[0]) != 2 {
		t.Fatalf("cycles = %v, want one entry covering both", r.Cycles)
	}
}

func TestSelfReference(t *testing.T) {
	s := task("sssssss1", "s", types.StatusPending, "sssssss1")
	r := Classify([]types.Entry{s})
	ct := find(t, r, "sssssss1")
	if !ct.InCycle || ct.Classification != types.ClassBlocked {
		t.Errorf("self-referential task not blocked as cycle: %+v", ct)
	}
}

func TestParentBlocked(t *testing.T) {
	p := task("ppppppp1", "parent", types.StatusBlocked)
	c := task("ccccccc2", "child", types.StatusPending)
	c.ParentID = "ppppppp1"

	r := Classify([]types.Entry{p, c})
	if got := find(t, r, "ccccccc2").Classification; got != types.ClassBlockedByParent {
		t.Errorf("child classification = %s, want blocked_by_parent", got)
	}

	// releasing the parent to active makes the child ready
	p.Status = types.StatusActive
	r = Classify([]types.Entry{p, c})
	if got := find(t, r, "ccccccc2").Classification; got != types.ClassReady {
		t.Errorf("child classification after release = %s, want ready", got)
	}
}

func TestParentPendingWaits(t *testing.T) {
	p := task("ppppppp2", "parent", types.StatusPending)
	c := task("ccccccc3", "child", types.StatusPending)
	c.ParentID = "ppppppp2"

	r := Classify([]types.Entry{p, c})
	if got := find(t, r, "ccccccc3").Classification; got != types.ClassWaitingOnParent {
		t.Errorf("child classification = %s, want waiting_on_parent", got)
	}
}

func TestAncestorChainTerminatesOnCycle(t *testing.T) {
	a := task("aaaaaaa2", "a", types.StatusPending)
	b := task("bbbbbbb2", "b", types.StatusPending)
	a.ParentID = "bbbbbbb2"
	b.ParentID = "aaaaaaa2"

	r := Classify([]types.Entry{a, b})
	ct := find(t, r, "aaaaaaa2")
	if len(ct.ParentChain) != 1 {
		t.Errorf("parent chain should stop at the visited node: %v", ct.ParentChain)
	}
}

func TestUnresolvedNeverAffectsCycleOrBlocked(t *testing.T) {
	a := task("aaaaaaa3", "a", types.StatusPending, "gone1234", "aaaaaaa4")
	b := task("aaaaaaa4", "b", types.StatusCompleted)

	r := Classify([]types.Entry{a, b})
	ct := find(t, r, "aaaaaaa3")
	if ct.Classification != types.ClassReady {
		t.Errorf("classification = %s, want ready (dangling ref is not blocking)", ct.Classification)
	}
	if len(ct.UnresolvedDeps) != 1 || ct.UnresolvedDeps[0] != "gone1234" {
		t.Errorf("unresolved_deps = %v", ct.UnresolvedDeps)
	}
	if len(ct.ResolvedDeps) != 1 || ct.ResolvedDeps[0] != "aaaaaaa4" {
		t.Errorf("resolved_deps = %v", ct.ResolvedDeps)
	}
}

func TestResolvedPlusUnresolvedCoversNormalizedSet(t *testing.T) {
	a := task("aaaaaaa5", "a", types.StatusPending,
		"bbbbbbb5", "bbbbbbb5.md", "gone9999", "projects/demo/task/bbbbbbb5-b.md")
	b := task("bbbbbbb5", "b", types.StatusPending)

	r := Classify([]types.Entry{a, b})
	ct := find(t, r, "aaaaaaa5")

	// duplicates collapse; both forms of the same ref resolve once
	total := len(ct.ResolvedDeps) + len(ct.UnresolvedDeps)
	if total != 3 {
		t.Errorf("resolved %v + unresolved %v should cover 3 normalized keys",
			ct.ResolvedDeps, ct.UnresolvedDeps)
	}
}

func TestDependencyBlocked(t *testing.T) {
	a := task("aaaaaaa6", "a", types.StatusBlocked)
	b := task("bbbbbbb6", "b", types.StatusPending, "aaaaaaa6")

	r := Classify([]types.Entry{a, b})
	ct := find(t, r, "bbbbbbb6")
	if ct.Classification != types.ClassBlocked {
		t.Errorf("classification = %s, want blocked", ct.Classification)
	}
	if ct.BlockedByReason != types.ReasonDependencyBlocked {
		t.Errorf("reason = %s, want dependency_blocked", ct.BlockedByReason)
	}
	if len(ct.BlockedBy) != 1 || ct.BlockedBy[0] != "aaaaaaa6" {
		t.Errorf("blocked_by = %v", ct.BlockedBy)
	}
}

func TestNotPending(t *testing.T) {
	for _, status := range []types.EntryStatus{
		types.StatusDraft, types.StatusActive, types.StatusInProgress,
		types.StatusCompleted, types.StatusBlocked,
	} {
		a := task("aaaaaaa7", "a", status)
		r := Classify([]types.Entry{a})
		if got := find(t, r, "aaaaaaa7").Classification; got != types.ClassNotPending {
			t.Errorf("status %s classified %s, want not_pending", status, got)
		}
	}
}

func TestTitleResolution(t *testing.T) {
	a := task("aaaaaaa8", "Fix the parser", types.StatusCompleted)
	b := task("bbbbbbb8", "b", types.StatusPending, "Fix the parser")

	r := Classify([]types.Entry{a, b})
	ct := find(t, r, "bbbbbbb8")
	if len(ct.ResolvedDeps) != 1 || ct.ResolvedDeps[0] != "aaaaaaa8" {
		t.Errorf("title ref did not resolve: %+v", ct)
	}
	if ct.Classification != types.ClassReady {
		t.Errorf("classification = %s, want ready", ct.Classification)
	}
}

func TestResolveWorkdir(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, "src", "demo"), 0755); err != nil {
		t.Fatal(err)
	}

	a := task("aaaaaaa9", "a", types.StatusPending)
	a.Workdir = "src/demo"
	r := ClassifyWithHome([]types.Entry{a}, home)
	if got := find(t, r, "aaaaaaa9").ResolvedWorkdir; got != filepath.Join(home, "src", "demo") {
		t.Errorf("resolved_workdir = %q", got)
	}

	// worktree wins over workdir
	a.Worktree = "~/src/demo"
	a.Workdir = "elsewhere"
	r = ClassifyWithHome([]types.Entry{a}, home)
	if got := find(t, r, "aaaaaaa9").ResolvedWorkdir; got != filepath.Join(home, "src", "demo") {
		t.Errorf("worktree resolution = %q", got)
	}

	// missing directory resolves to empty
	a.Worktree = "does/not/exist"
	r = ClassifyWithHome([]types.Entry{a}, home)
	if got := find(t, r, "aaaaaaa9").ResolvedWorkdir; got != "" {
		t.Errorf("missing dir should resolve empty, got %q", got)
	}
}

func TestScheduleOrdering(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	low := task("aaaaalow", "low", types.StatusPending)
	low.Priority = types.PriorityLow
	low.Created = base

	highLate := task("bbbbhigh", "high-late", types.StatusPending)
	highLate.Priority = types.PriorityHigh
	highLate.Created = base.Add(time.Hour)

	highEarly := task("aaaahigh", "high-early", types.StatusPending)
	highEarly.Priority = types.PriorityHigh
	highEarly.Created = base

	med := task("aaaaamed", "med", types.StatusPending)
	med.Created = base

	r := Classify([]types.Entry{low, highLate, highEarly, med})
	ready := Ready(r)

	want := []string{"aaaahigh", "bbbbhigh", "aaaaamed", "aaaaalow"}
	if len(ready) != len(want) {
		t.Fatalf("ready has %d tasks, want %d", len(ready), len(want))
	}
	for i, id := range want {
		if ready[i].ID != id {
			t.Errorf("ready[%d] = %s, want %s", i, ready[i].ID, id)
		}
	}
}

func TestStats(t *testing.T) {
	a := task("aaaaaa10", "a", types.StatusCompleted)
	b := task("bbbbbb10", "b", types.StatusPending, "aaaaaa10")
	c := task("cccccc10", "c", types.StatusPending, "bbbbbb10")
	x := task("xxxxxx10", "x", types.StatusPending, "yyyyyy10")
	y := task("yyyyyy10", "y", types.StatusPending, "xxxxxx10")

	r := Classify([]types.Entry{a, b, c, x, y})
	s := r.Stats
	if s.Total != 5 || s.Ready != 1 || s.Waiting != 1 || s.Blocked != 2 || s.NotPending != 1 || s.InCycle != 2 {
		t.Errorf("stats = %+v", s)
	}
}
