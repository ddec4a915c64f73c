// Package entries is the CRUD service over notebook entries: the sole
// writer of entry files. It owns frontmatter sanitization, title
// normalization, and content assembly; writes go file-first and
// metadata-second so a failed metadata write reconciles on the next
// access.
package entries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/metadata"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/types"
)

// Service is the entry service instance
type Service struct {
	nb    *notebook.Notebook
	meta  metadata.Store
	locks *pathLocks
	log   zerolog.Logger
}

// NewService creates the entry service over a notebook and metadata
// store
func NewService(nb *notebook.Notebook, meta metadata.Store) *Service {
	return &Service{
		nb:    nb,
		meta:  meta,
		locks: newPathLocks(),
		log:   logging.WithComponent("entries"),
	}
}

// NewID returns a fresh 8-char lowercase-alphanumeric entry id
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// CreateRequest carries everything an entry can be born with
type CreateRequest struct {
	Title    string            `json:"title"`
	Type     types.EntryType   `json:"type"`
	Status   types.EntryStatus `json:"status,omitempty"`
	Priority types.Priority    `json:"priority,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
	Project  string            `json:"project_id,omitempty"`
	Content  string            `json:"content,omitempty"`

	// RelatedEntries are refs resolved into a Related Brain Entries
	// appendix; unresolved refs are commented out, never fatal
	RelatedEntries []string `json:"related_entries,omitempty"`

	DependsOn           []string       `json:"depends_on,omitempty"`
	ParentID            string         `json:"parent_id,omitempty"`
	FeatureID           string         `json:"feature_id,omitempty"`
	FeaturePriority     types.Priority `json:"feature_priority,omitempty"`
	FeatureDependsOn    []string       `json:"feature_depends_on,omitempty"`
	Workdir             string         `json:"workdir,omitempty"`
	Worktree            string         `json:"worktree,omitempty"`
	GitRemote           string         `json:"git_remote,omitempty"`
	GitBranch           string         `json:"git_branch,omitempty"`
	UserOriginalRequest string         `json:"user_original_request,omitempty"`
}

// CreateResult is the wire response for a created entry
type CreateResult struct {
	ID     string            `json:"id"`
	Path   string            `json:"path"`
	Title  string            `json:"title"`
	Type   types.EntryType   `json:"type"`
	Status types.EntryStatus `json:"status"`
	Link   string            `json:"link"`
}

// Create writes a new entry file and initializes its metadata row.
// Unresolvable related refs do not fail the call; only write errors do.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !types.ValidEntryTypes[req.Type] {
		return nil, brainerr.Validation("invalid entry type: "+string(req.Type),
			brainerr.FieldError{Field: "type", Message: "must be one of the entry type enum"})
	}

	title := notebook.SanitizeTitle(req.Title)
	if title == "" {
		return nil, brainerr.Validation("title is required",
			brainerr.FieldError{Field: "title", Message: "must not be empty"})
	}

	status := req.Status
	if status == "" {
		status = types.DefaultStatus(req.Type)
	}
	if !types.ValidEntryStatuses[status] {
		return nil, brainerr.Validation("invalid status: "+string(status),
			brainerr.FieldError{Field: "status", Message: "must be one of the status enum"})
	}
	if req.ParentID != "" && !types.ValidEntryID(req.ParentID) {
		return nil, brainerr.Validation("invalid parent_id",
			brainerr.FieldError{Field: "parent_id", Message: "must be an 8-char entry id"})
	}

	// status lives in the status field only, never in the tag set
	tags := notebook.SanitizeTags(req.Tags)
	kept := tags[:0]
	for _, t := range tags {
		if !types.ValidEntryStatuses[types.EntryStatus(strings.ToLower(t))] {
			kept = append(kept, t)
		}
	}
	tags = kept

	id := NewID()
	path := notebook.EntryPath(req.Project, req.Type, id, title)
	now := time.Now().UTC()

	fields := []notebook.Field{
		{Key: "id", Value: id},
		{Key: "title", Value: title},
		{Key: "type", Value: string(req.Type)},
		{Key: "status", Value: string(status)},
		{Key: "created", Value: now},
	}
	if req.Priority != "" {
		fields = append(fields, notebook.Field{Key: "priority", Value: string(req.Priority)})
	}
	if len(tags) > 0 {
		fields = append(fields, notebook.Field{Key: "tags", Value: tags})
	}
	if req.Project != "" {
		fields = append(fields, notebook.Field{Key: "project_id", Value: req.Project})
	}
	if len(req.DependsOn) > 0 {
		fields = append(fields, notebook.Field{Key: "depends_on", Value: sanitizeRefs(req.DependsOn)})
	}
	for _, f := range []struct {
		key string
		val string
	}{
		{"parent_id", req.ParentID},
		{"feature_id", req.FeatureID},
		{"feature_priority", string(req.FeaturePriority)},
		{"workdir", req.Workdir},
		{"worktree", req.Worktree},
		{"git_remote", req.GitRemote},
		{"git_branch", req.GitBranch},
		{"user_original_request", notebook.SanitizeText(req.UserOriginalRequest)},
	} {
		if f.val != "" {
			fields = append(fields, notebook.Field{Key: f.key, Value: f.val})
		}
	}
	if len(req.FeatureDependsOn) > 0 {
		fields = append(fields, notebook.Field{Key: "feature_depends_on", Value: sanitizeRefs(req.FeatureDependsOn)})
	}

	var b strings.Builder
	b.WriteString(notebook.RenderFrontmatter(fields))
	b.WriteString("\n# ")
	b.WriteString(title)
	b.WriteString("\n")
	if body := notebook.SanitizeText(req.Content); body != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(body, "\n"))
		b.WriteString("\n")
	}
	if appendix := s.relatedAppendix(ctx, req.RelatedEntries); appendix != "" {
		b.WriteString("\n")
		b.WriteString(appendix)
	}

	unlock := s.locks.lock(path)
	defer unlock()

	if err := s.nb.Write(path, b.String()); err != nil {
		return nil, err
	}
	if err := s.meta.InitEntry(id, path, req.Project); err != nil {
		return nil, brainerr.Io("init entry metadata", err)
	}

	s.log.Info().Str("id", id).Str("path", path).Str("type", string(req.Type)).Msg("entry created")
	return &CreateResult{
		ID:     id,
		Path:   path,
		Title:  title,
		Type:   req.Type,
		Status: status,
		Link:   markdownLink(title, path),
	}, nil
}

// relatedAppendix resolves related refs into a markdown appendix.
// Unresolved refs are commented out so human review stays cheap.
func (s *Service) relatedAppendix(ctx context.Context, refs []string) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Related Brain Entries\n\n")
	for _, ref := range refs {
		ref = notebook.SanitizeRef(ref)
		if ref == "" {
			continue
		}
		doc, err := s.resolveRef(ctx, ref)
		if err != nil {
			b.WriteString("<!-- unresolved: " + ref + " -->\n")
			continue
		}
		b.WriteString("- " + markdownLink(doc.Title, doc.Path) + "\n")
	}
	return b.String()
}

// RecalledEntry is an entry plus its metadata row
type RecalledEntry struct {
	types.Entry
	Meta *metadata.Row `json:"meta,omitempty"`
}

// Recall resolves a ref (8-char id, path, or exact title) and records
// the access
func (s *Service) Recall(ctx context.Context, ref string) (*RecalledEntry, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	entry := doc.ToEntry()
	if err := s.meta.RecordAccess(entry.ID, entry.Path, entry.Project); err != nil {
		s.log.Warn().Err(err).Str("id", entry.ID).Msg("access not recorded")
	}

	row, err := s.meta.Get(entry.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("id", entry.ID).Msg("metadata read failed")
	}
	return &RecalledEntry{Entry: entry, Meta: row}, nil
}

// resolveRef finds the document a ref points at. Ids and paths are
// direct; anything else resolves by exact title, with a typed
// ambiguity error when several entries share the title.
func (s *Service) resolveRef(ctx context.Context, ref string) (*notebook.Document, error) {
	ref = notebook.SanitizeRef(ref)
	if ref == "" {
		return nil, brainerr.Validation("empty entry ref")
	}

	if types.ValidEntryID(ref) || strings.Contains(ref, "/") || strings.HasSuffix(ref, ".md") {
		return s.nb.Get(ctx, ref)
	}

	hits, err := s.nb.FindByTitle(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch len(hits) {
	case 0:
		return nil, brainerr.NotFoundf("no entry matching %q", ref)
	case 1:
		return &hits[0], nil
	default:
		suggestions := make([]brainerr.Suggestion, 0, 5)
		for _, h := range hits {
			if len(suggestions) == 5 {
				break
			}
			suggestions = append(suggestions, brainerr.Suggestion{
				ID:    notebook.IDFromPath(h.Path),
				Title: h.Title,
				Path:  h.Path,
			})
		}
		return nil, brainerr.Ambiguous(fmt.Sprintf("%d entries match title %q", len(hits), ref), suggestions)
	}
}

// Delete removes the entry file and its metadata row
func (s *Service) Delete(ctx context.Context, ref string) (*types.Entry, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	entry := doc.ToEntry()

	unlock := s.locks.lock(entry.Path)
	defer unlock()

	if err := s.nb.Delete(entry.Path); err != nil {
		return nil, err
	}
	if err := s.meta.Delete(entry.ID); err != nil {
		s.log.Warn().Err(err).Str("id", entry.ID).Msg("metadata delete failed")
	}
	s.log.Info().Str("id", entry.ID).Str("path", entry.Path).Msg("entry deleted")
	return &entry, nil
}

// Verify bumps the last-verified timestamp
func (s *Service) Verify(ctx context.Context, ref string) (time.Time, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return time.Time{}, err
	}
	id := notebook.IDFromPath(doc.Path)
	at, err := s.meta.Verify(id)
	if err != nil {
		return time.Time{}, brainerr.Io("verify entry", err)
	}
	return at, nil
}

// Link is a canonical markdown link to an entry
type Link struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	Markdown string `json:"markdown"`
}

// GenerateLink resolves a ref to its canonical markdown link
func (s *Service) GenerateLink(ctx context.Context, ref string) (*Link, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &Link{
		ID:       notebook.IDFromPath(doc.Path),
		Title:    doc.Title,
		Path:     doc.Path,
		Markdown: markdownLink(doc.Title, doc.Path),
	}, nil
}

func markdownLink(title, path string) string {
	return "[" + title + "](" + path + ")"
}

// sanitizeRefs escapes the characters that can never appear in a
// dependency ref
func sanitizeRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if clean := notebook.SanitizeRef(r); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
