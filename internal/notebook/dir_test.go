package notebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/types"
)

func writeTestEntry(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func seedNotebook(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTestEntry(t, root, "projects/acme/task/abcd1234-fix-login.md",
		"---\ntitle: Fix login\ntype: task\nstatus: pending\ntags:\n  - auth\n---\nbody a\n")
	writeTestEntry(t, root, "projects/acme/task/eeee5555-add-cache.md",
		"---\ntitle: Add cache\ntype: task\nstatus: draft\n---\nbody b\n")
	writeTestEntry(t, root, "projects/acme/plan/ffff0000-q2-plan.md",
		"---\ntitle: Q2 plan\ntype: plan\nstatus: active\n---\nbody c\n")
	writeTestEntry(t, root, "global/idea/99990000-cache-warming.md",
		"---\ntitle: Cache warming\ntype: idea\nstatus: active\ntags:\n  - perf\n---\nbody d\n")
	return root
}

func TestDirBackendListByProjectAndType(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	docs, err := d.List(context.Background(), Filters{Project: "acme", Type: types.TypeTask})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(docs), docs)
	}
	// sorted by path
	if docs[0].Title != "Fix login" || docs[1].Title != "Add cache" {
		t.Errorf("titles = %q, %q", docs[0].Title, docs[1].Title)
	}
}

func TestDirBackendListGlobal(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	docs, err := d.List(context.Background(), Filters{Global: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Cache warming" {
		t.Errorf("global docs = %v", docs)
	}
}

func TestDirBackendListByTag(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	docs, err := d.List(context.Background(), Filters{Tag: "perf"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Cache warming" {
		t.Errorf("tag filter = %v", docs)
	}
}

func TestDirBackendLimit(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	docs, err := d.List(context.Background(), Filters{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("limit ignored: len = %d", len(docs))
	}
}

func TestDirBackendRejectsIndexQueries(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	_, err := d.List(context.Background(), Filters{Match: "cache"})
	if !brainerr.IsKind(err, brainerr.KindBackendUnavailable) {
		t.Errorf("match query error = %v, want backend_unavailable", err)
	}

	_, err = d.List(context.Background(), Filters{Orphan: true})
	if !brainerr.IsKind(err, brainerr.KindBackendUnavailable) {
		t.Errorf("orphan query error = %v, want backend_unavailable", err)
	}
}

func TestDirBackendFindByID(t *testing.T) {
	d := NewDirBackend(seedNotebook(t))

	doc, err := d.FindByID(context.Background(), "abcd1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if doc.Path != "projects/acme/task/abcd1234-fix-login.md" {
		t.Errorf("path = %q", doc.Path)
	}

	_, err = d.FindByID(context.Background(), "00000000")
	if !brainerr.IsKind(err, brainerr.KindNotFound) {
		t.Errorf("missing id error = %v, want not_found", err)
	}
}

func TestDirBackendSkipsUnparseableEntries(t *testing.T) {
	root := seedNotebook(t)
	writeTestEntry(t, root, "projects/acme/task/broken.md",
		"---\ntitle: [unclosed\n---\nbody\n")
	d := NewDirBackend(root)

	docs, err := d.List(context.Background(), Filters{Project: "acme", Type: types.TypeTask})
	if err != nil {
		t.Fatalf("list should skip broken entries: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("len = %d, want 2 parseable docs", len(docs))
	}
}

func TestNotebookGetByPathAndID(t *testing.T) {
	nb := New(seedNotebook(t), nil)
	ctx := context.Background()

	doc, err := nb.Get(ctx, "projects/acme/plan/ffff0000-q2-plan.md")
	if err != nil {
		t.Fatalf("get by path: %v", err)
	}
	if doc.Title != "Q2 plan" {
		t.Errorf("title = %q", doc.Title)
	}

	// path without .md resolves too
	doc, err = nb.Get(ctx, "projects/acme/plan/ffff0000-q2-plan")
	if err != nil {
		t.Fatalf("get by extensionless path: %v", err)
	}

	doc, err = nb.Get(ctx, "99990000")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if doc.Path != "global/idea/99990000-cache-warming.md" {
		t.Errorf("path = %q", doc.Path)
	}

	_, err = nb.Get(ctx, "does/not/exist.md")
	if !brainerr.IsKind(err, brainerr.KindNotFound) {
		t.Errorf("missing path error = %v, want not_found", err)
	}
}

func TestNotebookWriteRejectsEscapes(t *testing.T) {
	nb := New(t.TempDir(), nil)
	if err := nb.Write("../outside.md", "x"); !brainerr.IsKind(err, brainerr.KindValidation) {
		t.Errorf("escape write error = %v, want validation", err)
	}
}

func TestNotebookProjects(t *testing.T) {
	root := seedNotebook(t)
	writeTestEntry(t, root, "global/task/11112222-global-chore.md",
		"---\ntitle: Global chore\ntype: task\nstatus: pending\n---\nx\n")
	writeTestEntry(t, root, "projects/beta/plan/22223333-notes.md",
		"---\ntitle: Notes\ntype: plan\n---\nx\n")
	nb := New(root, nil)

	projects, err := nb.Projects(context.Background())
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	want := []string{"acme", "global"}
	if len(projects) != len(want) {
		t.Fatalf("projects = %v, want %v", projects, want)
	}
	for i := range want {
		if projects[i] != want[i] {
			t.Errorf("projects[%d] = %q, want %q", i, projects[i], want[i])
		}
	}
}

func TestNotebookListUnavailableIndex(t *testing.T) {
	nb := New(seedNotebook(t), nil)
	_, err := nb.List(context.Background(), Filters{Match: "cache"})
	if !brainerr.IsKind(err, brainerr.KindBackendUnavailable) {
		t.Errorf("err = %v, want backend_unavailable", err)
	}
}
