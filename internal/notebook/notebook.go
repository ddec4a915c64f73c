// Package notebook is the adapter over the markdown entry store. Reads go
// through one of two backends (the zk index or a direct file walk); writes
// always go to the files themselves.
package notebook

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/types"
)

// Notebook is the adapter instance. The dir backend is always present;
// the rich backend may be nil or unavailable.
type Notebook struct {
	root string
	rich Backend
	dir  *DirBackend
	log  zerolog.Logger
}

// New creates a notebook over root. rich may be nil to force direct-file
// operation.
func New(root string, rich Backend) *Notebook {
	return &Notebook{
		root: root,
		rich: rich,
		dir:  NewDirBackend(root),
		log:  logging.WithComponent("notebook"),
	}
}

// Root returns the notebook root directory
func (n *Notebook) Root() string { return n.root }

// Available reports whether the rich backend can serve index queries
func (n *Notebook) Available(ctx context.Context) bool {
	return n.rich != nil && n.rich.Available(ctx)
}

// BackendName reports which backend serves index queries right now
func (n *Notebook) BackendName(ctx context.Context) string {
	if n.Available(ctx) {
		return n.rich.Name()
	}
	return n.dir.Name()
}

// List serves a filtered query. Index-dependent filters need the rich
// backend and degrade to a typed error without it; plain lists always
// come from the files directly so results stay deterministic.
func (n *Notebook) List(ctx context.Context, f Filters) ([]Document, error) {
	if f.NeedsIndex() {
		if n.rich == nil || !n.rich.Available(ctx) {
			return nil, brainerr.Unavailable("search requires the notebook index; install zk or narrow the query")
		}
		return n.rich.List(ctx, f)
	}
	return n.dir.List(ctx, f)
}

// Get resolves a ref that is either a relative path or an 8-char id
func (n *Notebook) Get(ctx context.Context, ref string) (*Document, error) {
	ref = strings.Trim(ref, "/")
	if ref == "" {
		return nil, brainerr.Validation("empty entry ref")
	}
	if types.ValidEntryID(ref) {
		return n.dir.FindByID(ctx, ref)
	}
	if !strings.HasSuffix(ref, ".md") {
		ref += ".md"
	}
	return n.dir.Load(ref)
}

// FindByTitle returns every document whose title matches exactly
func (n *Notebook) FindByTitle(ctx context.Context, title string) ([]Document, error) {
	docs, err := n.dir.List(ctx, Filters{})
	if err != nil {
		return nil, err
	}
	var hits []Document
	for _, d := range docs {
		if d.Title == title {
			hits = append(hits, d)
		}
	}
	return hits, nil
}

// Read returns the raw file text for surgical updates
func (n *Notebook) Read(rel string) (string, error) {
	full, err := n.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", brainerr.NotFoundf("entry not found: %s", rel)
		}
		return "", brainerr.Io("read entry", err)
	}
	return string(data), nil
}

// Write persists file text, creating parent directories as needed
func (n *Notebook) Write(rel, content string) error {
	full, err := n.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return brainerr.Io("create entry directory", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return brainerr.Io("write entry", err)
	}
	return nil
}

// Delete removes an entry file
func (n *Notebook) Delete(rel string) error {
	full, err := n.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return brainerr.NotFoundf("entry not found: %s", rel)
		}
		return brainerr.Io("delete entry", err)
	}
	return nil
}

// Exists reports whether a relative path is present
func (n *Notebook) Exists(rel string) bool {
	full, err := n.resolve(rel)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(full)
	return statErr == nil
}

// Projects lists project directories that carry a task/ subdirectory;
// "global" appears when global tasks exist
func (n *Notebook) Projects(ctx context.Context) ([]string, error) {
	var projects []string

	if info, err := os.Stat(filepath.Join(n.root, "global", string(types.TypeTask))); err == nil && info.IsDir() {
		projects = append(projects, "global")
	}

	entries, err := os.ReadDir(filepath.Join(n.root, "projects"))
	if err != nil {
		if os.IsNotExist(err) {
			return projects, nil
		}
		return nil, brainerr.Io("list projects", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		taskDir := filepath.Join(n.root, "projects", e.Name(), string(types.TypeTask))
		if info, statErr := os.Stat(taskDir); statErr == nil && info.IsDir() {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// TaskFilters returns the list filter for a project's task set
func TaskFilters(project string) Filters {
	if project == "global" {
		return Filters{Type: types.TypeTask, Global: true}
	}
	return Filters{Type: types.TypeTask, Project: project}
}

// resolve joins rel to the root and refuses path escapes
func (n *Notebook) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.Trim(rel, "/")))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", brainerr.Validationf("invalid entry path: %s", rel)
	}
	return filepath.Join(n.root, cleaned), nil
}
