package notebook

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CLIAIBRAIN/internal/brainerr"
)

// DirBackend walks the notebook directory and parses frontmatter itself.
// It serves plain lists when the rich backend is absent; index-only
// queries (match, links, orphans) report unsupported.
type DirBackend struct {
	root string
}

// NewDirBackend creates a direct-file backend over the notebook root
func NewDirBackend(root string) *DirBackend {
	return &DirBackend{root: root}
}

// Name identifies the backend in health output
func (d *DirBackend) Name() string { return "dir" }

// Available reports whether the notebook root exists
func (d *DirBackend) Available(ctx context.Context) bool {
	info, err := os.Stat(d.root)
	return err == nil && info.IsDir()
}

// List walks the scoped directories and filters parsed documents
func (d *DirBackend) List(ctx context.Context, f Filters) ([]Document, error) {
	if f.NeedsIndex() {
		return nil, brainerr.Unavailable("search requires the notebook index; install zk or narrow the query")
	}

	scopes := scopePaths(f)
	if len(scopes) == 0 {
		scopes = []string{"global", "projects"}
	}

	var docs []Document
	for _, scope := range scopes {
		base := filepath.Join(d.root, filepath.FromSlash(scope))
		err := filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				return nil
			}
			rel, relErr := filepath.Rel(d.root, p)
			if relErr != nil {
				return relErr
			}
			doc, loadErr := d.Load(filepath.ToSlash(rel))
			if loadErr != nil {
				// unreadable or unparseable entries are skipped, not fatal
				return nil
			}
			docs = append(docs, *doc)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, brainerr.Io("walk notebook", err)
		}
	}

	if f.Type != "" {
		docs = filterByType(docs, f.Type)
	}
	if f.Tag != "" {
		kept := docs[:0]
		for _, doc := range docs {
			if hasTag(doc, f.Tag) {
				kept = append(kept, doc)
			}
		}
		docs = kept
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	if f.Limit > 0 && len(docs) > f.Limit {
		docs = docs[:f.Limit]
	}
	return docs, nil
}

func hasTag(d Document, tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	fm := Frontmatter{Fields: d.Metadata}
	for _, t := range fm.GetStringList("tags") {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Load reads and parses one entry by its path relative to the root
func (d *DirBackend) Load(rel string) (*Document, error) {
	full := filepath.Join(d.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, brainerr.NotFoundf("entry not found: %s", rel)
		}
		return nil, brainerr.Io("read entry", err)
	}

	text := string(data)
	fm, body, err := ParseFrontmatter(text)
	if err != nil {
		return nil, brainerr.Io("parse entry "+rel, err)
	}

	title := fm.GetString("title")
	if title == "" {
		title = titleFromBody(body)
	}
	if title == "" {
		base := strings.TrimSuffix(filepath.Base(rel), ".md")
		title = base
	}

	doc := &Document{
		Path:     filepath.ToSlash(rel),
		Title:    title,
		Tags:     fm.GetStringList("tags"),
		Metadata: fm.Fields,
		Lead:     LeadFromBody(body),
		Body:     body,
		Created:  fm.GetTime("created"),
	}

	if info, statErr := os.Stat(full); statErr == nil {
		doc.Modified = info.ModTime()
		if doc.Created.IsZero() {
			doc.Created = info.ModTime()
		}
	}
	return doc, nil
}

// FindByID walks the tree for the file whose name starts with the id.
// IDs are injective with paths so the first hit wins.
func (d *DirBackend) FindByID(ctx context.Context, id string) (*Document, error) {
	var found string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			return nil
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		if name == id || strings.HasPrefix(name, id+"-") {
			rel, relErr := filepath.Rel(d.root, p)
			if relErr != nil {
				return relErr
			}
			found = filepath.ToSlash(rel)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, brainerr.Io("walk notebook", err)
	}
	if found == "" {
		return nil, brainerr.NotFoundf("no entry with id %s", id)
	}
	return d.Load(found)
}

func titleFromBody(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		return ""
	}
	return ""
}
