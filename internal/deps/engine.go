// Package deps is the task dependency and classification engine: a pure
// function from a task set to classified tasks, cycles, and stats. It is
// stateless and re-run per query; callers may cache but must invalidate
// on any task write.
package deps

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CLIAIBRAIN/internal/types"
)

// Ref is one normalized depends_on reference. Project hints come from
// "project:ref" syntax; Raw keeps the original for reporting.
type Ref struct {
	Raw     string
	Key     string
	Project string
}

// NormalizeRef strips the .md suffix and the projects/<p>/task/ path
// prefix, and splits a "project:ref" hint into its parts
func NormalizeRef(raw string) Ref {
	r := Ref{Raw: raw}
	key := strings.TrimSpace(raw)

	if i := strings.Index(key, ":"); i > 0 && !strings.Contains(key[:i], "/") {
		r.Project = key[:i]
		key = key[i+1:]
	}

	key = strings.TrimSuffix(key, ".md")

	if strings.HasPrefix(key, "projects/") {
		parts := strings.Split(key, "/")
		if len(parts) >= 4 && parts[2] == string(types.TypeTask) {
			if r.Project == "" {
				r.Project = parts[1]
			}
			key = parts[len(parts)-1]
		}
	}
	if strings.HasPrefix(key, "global/") {
		parts := strings.Split(key, "/")
		if len(parts) >= 3 && parts[1] == string(types.TypeTask) {
			key = parts[len(parts)-1]
		}
	}

	r.Key = key
	return r
}

// index resolves refs against the task set: by id, then filename stem,
// then exact title
type index struct {
	byID    map[string]int
	byStem  map[string]int
	byTitle map[string][]int
}

func buildIndex(tasks []types.Entry) index {
	ix := index{
		byID:    make(map[string]int, len(tasks)),
		byStem:  make(map[string]int, len(tasks)),
		byTitle: make(map[string][]int),
	}
	for i := range tasks {
		t := &tasks[i]
		if t.ID != "" {
			ix.byID[t.ID] = i
		}
		if stem := t.Stem(); stem != "" {
			ix.byStem[stem] = i
		}
		if t.Title != "" {
			ix.byTitle[t.Title] = append(ix.byTitle[t.Title], i)
		}
	}
	return ix
}

// resolve returns the index of the task a ref points at, or -1
func (ix index) resolve(r Ref) int {
	if i, ok := ix.byID[r.Key]; ok {
		return i
	}
	if i, ok := ix.byStem[r.Key]; ok {
		return i
	}
	if hits := ix.byTitle[r.Key]; len(hits) == 1 {
		return hits[0]
	}
	return -1
}

// Classify runs the full engine over a task set. O(V+E).
func Classify(tasks []types.Entry) types.ClassificationResult {
	return classify(tasks, os.Getenv("HOME"))
}

// ClassifyWithHome is Classify with an explicit home directory for
// workdir resolution; tests use it to avoid touching the environment
func ClassifyWithHome(tasks []types.Entry, home string) types.ClassificationResult {
	return classify(tasks, home)
}

func classify(tasks []types.Entry, home string) types.ClassificationResult {
	ix := buildIndex(tasks)
	n := len(tasks)

	out := make([]types.ClassifiedTask, n)
	edges := make([][]int, n)

	for i := range tasks {
		ct := types.ClassifiedTask{Entry: tasks[i]}
		ct.ResolvedDeps = []string{}

		seen := make(map[string]bool)
		for _, raw := range tasks[i].DependsOn {
			ref := NormalizeRef(raw)
			if ref.Key == "" || seen[ref.Key] {
				continue
			}
			seen[ref.Key] = true

			j := ix.resolve(ref)
			if j == -1 {
				ct.UnresolvedDeps = append(ct.UnresolvedDeps, ref.Key)
				continue
			}
			ct.ResolvedDeps = append(ct.ResolvedDeps, tasks[j].ID)
			edges[i] = append(edges[i], j)
		}

		ct.ParentChain = ancestorChain(tasks, ix, i)
		ct.ResolvedWorkdir = resolveWorkdir(&tasks[i], home)
		out[i] = ct
	}

	cycles, inCycle := findCycles(tasks, edges)

	for i := range out {
		ct := &out[i]
		ct.InCycle = inCycle[i]

		// Pass A: dep-derived sets, independent of the pending gate
		for _, j := range edges[i] {
			dep := &tasks[j]
			switch dep.Status {
			case types.StatusBlocked, types.StatusCancelled, types.StatusSuperseded, types.StatusArchived:
				ct.BlockedBy = append(ct.BlockedBy, dep.ID)
			}
			if dep.Status != types.StatusCompleted && dep.Status != types.StatusValidated {
				ct.WaitingOn = append(ct.WaitingOn, dep.ID)
			}
		}

		ct.Classification = finalClassification(ct, tasks, ix)
	}

	return types.ClassificationResult{
		Tasks:  out,
		Cycles: cycles,
		Stats:  tally(out),
	}
}

// finalClassification applies the ordered rules; first match wins
func finalClassification(ct *types.ClassifiedTask, tasks []types.Entry, ix index) types.Classification {
	if ct.Status != types.StatusPending {
		return types.ClassNotPending
	}
	if ct.InCycle {
		ct.BlockedByReason = types.ReasonCircularDependency
		return types.ClassBlocked
	}

	var hardParent, softParent, waitParent bool
	for _, pid := range ct.ParentChain {
		j, ok := ix.byID[pid]
		if !ok {
			continue
		}
		switch tasks[j].Status {
		case types.StatusBlocked, types.StatusCancelled:
			hardParent = true
		case types.StatusArchived, types.StatusSuperseded:
			softParent = true
		case types.StatusCompleted, types.StatusValidated, types.StatusActive, types.StatusInProgress:
		default:
			waitParent = true
		}
	}

	if hardParent {
		return types.ClassBlockedByParent
	}
	if len(ct.BlockedBy) > 0 {
		ct.BlockedByReason = types.ReasonDependencyBlocked
		return types.ClassBlocked
	}
	if softParent {
		return types.ClassBlockedByParent
	}
	if waitParent {
		return types.ClassWaitingOnParent
	}
	if len(ct.WaitingOn) > 0 {
		return types.ClassWaiting
	}
	return types.ClassReady
}

// ancestorChain walks parent_id upward. The visited set terminates the
// walk on parent cycles; dangling parents end the chain silently.
func ancestorChain(tasks []types.Entry, ix index, start int) []string {
	var chain []string
	visited := map[int]bool{start: true}

	cur := start
	for {
		pid := tasks[cur].ParentID
		if pid == "" {
			break
		}
		j := ix.resolve(NormalizeRef(pid))
		if j == -1 {
			chain = append(chain, NormalizeRef(pid).Key)
			break
		}
		if visited[j] {
			break
		}
		visited[j] = true
		chain = append(chain, tasks[j].ID)
		cur = j
	}
	return chain
}

// resolveWorkdir derives the absolute working directory from worktree
// falling back to workdir, resolved against home; "" unless the
// directory exists on disk
func resolveWorkdir(t *types.Entry, home string) string {
	raw := t.Worktree
	if raw == "" {
		raw = t.Workdir
	}
	if raw == "" {
		return ""
	}

	p := raw
	switch {
	case strings.HasPrefix(p, "~/"):
		p = filepath.Join(home, p[2:])
	case p == "~":
		p = home
	case !filepath.IsAbs(p):
		p = filepath.Join(home, p)
	}
	p = filepath.Clean(p)

	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}

func tally(tasks []types.ClassifiedTask) types.ClassifyStats {
	var s types.ClassifyStats
	s.Total = len(tasks)
	for i := range tasks {
		switch {
		case tasks[i].Classification == types.ClassReady:
			s.Ready++
		case tasks[i].Classification.CountsAsWaiting():
			s.Waiting++
		case tasks[i].Classification.CountsAsBlocked():
			s.Blocked++
		case tasks[i].Classification == types.ClassNotPending:
			s.NotPending++
		}
		if tasks[i].InCycle {
			s.InCycle++
		}
	}
	return s
}

// SortSchedule orders tasks for the scheduling projections: priority
// (high before medium before low), then created ascending, then id.
// The sort is stable so equal keys keep input order.
func SortSchedule(tasks []types.ClassifiedTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		pi, pj := types.PriorityRank(tasks[i].Priority), types.PriorityRank(tasks[j].Priority)
		if pi != pj {
			return pi < pj
		}
		if !tasks[i].Created.Equal(tasks[j].Created) {
			return tasks[i].Created.Before(tasks[j].Created)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// Ready returns the ordered ready projection
func Ready(r types.ClassificationResult) []types.ClassifiedTask {
	return project(r, func(c types.Classification) bool { return c == types.ClassReady })
}

// Waiting returns the ordered waiting projection, including tasks
// waiting on a parent
func Waiting(r types.ClassificationResult) []types.ClassifiedTask {
	return project(r, types.Classification.CountsAsWaiting)
}

// Blocked returns the ordered blocked projection, including tasks
// blocked by a parent
func Blocked(r types.ClassificationResult) []types.ClassifiedTask {
	return project(r, types.Classification.CountsAsBlocked)
}

// Next returns the top ready task, nil when none is ready. It always
// equals the first element of Ready.
func Next(r types.ClassificationResult) *types.ClassifiedTask {
	ready := Ready(r)
	if len(ready) == 0 {
		return nil
	}
	return &ready[0]
}

func project(r types.ClassificationResult, keep func(types.Classification) bool) []types.ClassifiedTask {
	out := make([]types.ClassifiedTask, 0, len(r.Tasks))
	for i := range r.Tasks {
		if keep(r.Tasks[i].Classification) {
			out = append(out, r.Tasks[i])
		}
	}
	SortSchedule(out)
	return out
}
