package entries

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/metadata"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/types"
)

// ListRequest filters and pages an entry listing
type ListRequest struct {
	Type     types.EntryType
	Status   types.EntryStatus
	ParentID string
	Project  string
	Global   bool
	Filename string
	SortBy   string // created | modified | priority
	Limit    int
	Offset   int
}

// ListResult is one page of entries
type ListResult struct {
	Entries []types.Entry `json:"entries"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// List returns a filtered, sorted, paginated entry listing
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	docs, err := s.nb.List(ctx, notebook.Filters{
		Type:    req.Type,
		Project: req.Project,
		Global:  req.Global,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]types.Entry, 0, len(docs))
	for i := range docs {
		e := docs[i].ToEntry()
		if req.Status != "" && e.Status != req.Status {
			continue
		}
		if req.ParentID != "" && e.ParentID != req.ParentID {
			continue
		}
		if req.Filename != "" && !strings.Contains(e.Stem(), req.Filename) {
			continue
		}
		e.Body = "" // listings carry no content
		entries = append(entries, e)
	}

	switch req.SortBy {
	case "modified":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Modified.After(entries[j].Modified) })
	case "priority":
		sort.SliceStable(entries, func(i, j int) bool {
			return types.PriorityRank(entries[i].Priority) < types.PriorityRank(entries[j].Priority)
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Created.After(entries[j].Created) })
	}

	total := len(entries)
	if req.Offset > 0 {
		if req.Offset >= len(entries) {
			entries = nil
		} else {
			entries = entries[req.Offset:]
		}
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	return &ListResult{Entries: entries, Total: total, Limit: req.Limit, Offset: req.Offset}, nil
}

// snippetLen caps the search result excerpt
const snippetLen = 150

// SearchRequest is a full-text query over the notebook index
type SearchRequest struct {
	Query   string            `json:"query"`
	Type    types.EntryType   `json:"type,omitempty"`
	Status  types.EntryStatus `json:"status,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Global  bool              `json:"global,omitempty"`
	Project string            `json:"project_id,omitempty"`
}

// SearchHit is one search result with its snippet
type SearchHit struct {
	ID      string            `json:"id"`
	Path    string            `json:"path"`
	Title   string            `json:"title"`
	Type    types.EntryType   `json:"type"`
	Status  types.EntryStatus `json:"status"`
	Snippet string            `json:"snippet"`
}

// Search runs a full-text match through the rich backend. Requires the
// index; degrades to BackendUnavailable without it.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]SearchHit, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, brainerr.Validation("query is required",
			brainerr.FieldError{Field: "query", Message: "must not be empty"})
	}

	docs, err := s.nb.List(ctx, notebook.Filters{
		Match:   req.Query,
		Type:    req.Type,
		Project: req.Project,
		Global:  req.Global,
		Limit:   req.Limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(docs))
	for i := range docs {
		e := docs[i].ToEntry()
		if req.Status != "" && e.Status != req.Status {
			continue
		}
		hits = append(hits, SearchHit{
			ID:      e.ID,
			Path:    e.Path,
			Title:   e.Title,
			Type:    e.Type,
			Status:  e.Status,
			Snippet: snippet(docs[i].Lead, docs[i].Body),
		})
	}
	return hits, nil
}

func snippet(lead, body string) string {
	src := lead
	if src == "" {
		src = body
	}
	src = strings.Join(strings.Fields(src), " ")
	if len(src) > snippetLen {
		src = src[:snippetLen]
	}
	return src
}

// InjectResult is a composed context block plus the structured hits
type InjectResult struct {
	Block string      `json:"block"`
	Hits  []SearchHit `json:"hits"`
}

// Inject searches and formats a Relevant Brain Context block. It
// succeeds even without the rich backend, returning an empty block
// with an explanatory line.
func (s *Service) Inject(ctx context.Context, req SearchRequest) (*InjectResult, error) {
	hits, err := s.Search(ctx, req)
	if err != nil {
		if brainerr.IsKind(err, brainerr.KindBackendUnavailable) {
			return &InjectResult{
				Block: "## Relevant Brain Context\n\n_Context search unavailable: the notebook index is not installed._\n",
				Hits:  []SearchHit{},
			}, nil
		}
		return nil, err
	}

	var b strings.Builder
	b.WriteString("## Relevant Brain Context\n")
	if len(hits) == 0 {
		b.WriteString("\n_No relevant entries found for this query._\n")
	}
	for _, h := range hits {
		b.WriteString("\n### " + h.Title + "\n\n")
		if h.Snippet != "" {
			b.WriteString(h.Snippet + "\n")
		}
		b.WriteString("\n" + markdownLink(h.Title, h.Path) + "\n")
	}
	return &InjectResult{Block: b.String(), Hits: hits}, nil
}

// Stats summarizes the store for the stats endpoint
type Stats struct {
	TotalEntries  int             `json:"total_entries"`
	ByType        map[string]int  `json:"by_type"`
	ByStatus      map[string]int  `json:"by_status"`
	TotalAccesses int             `json:"total_accesses"`
	MostAccessed  []*metadata.Row `json:"most_accessed,omitempty"`
}

// GetStats counts entries by type and status and folds in metadata
// totals
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	docs, err := s.nb.List(ctx, notebook.Filters{})
	if err != nil {
		return nil, err
	}

	st := &Stats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for i := range docs {
		e := docs[i].ToEntry()
		st.TotalEntries++
		st.ByType[string(e.Type)]++
		st.ByStatus[string(e.Status)]++
	}

	if _, accesses, err := s.meta.Totals(); err == nil {
		st.TotalAccesses = accesses
	}
	if rows, err := s.meta.MostAccessed(5); err == nil {
		st.MostAccessed = rows
	}
	return st, nil
}

// ListOrphans returns entries with no incoming or outgoing links.
// Requires the rich backend.
func (s *Service) ListOrphans(ctx context.Context, limit int) ([]types.Entry, error) {
	docs, err := s.nb.List(ctx, notebook.Filters{Orphan: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, 0, len(docs))
	for i := range docs {
		e := docs[i].ToEntry()
		e.Body = ""
		out = append(out, e)
	}
	return out, nil
}

// StaleEntry is an entry with its verification age
type StaleEntry struct {
	types.Entry
	LastVerified *time.Time `json:"last_verified,omitempty"`
}

// ListStale returns entries whose last verification is older than the
// given number of days, never-verified entries first
func (s *Service) ListStale(ctx context.Context, days, limit int) ([]StaleEntry, error) {
	if days < 1 || days > 365 {
		return nil, brainerr.Validation("days must be between 1 and 365",
			brainerr.FieldError{Field: "days", Message: "must be in [1, 365]"})
	}

	docs, err := s.nb.List(ctx, notebook.Filters{})
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	var out []StaleEntry
	for i := range docs {
		e := docs[i].ToEntry()
		if e.ID == "" {
			continue
		}
		row, err := s.meta.Get(e.ID)
		if err != nil {
			continue
		}
		var verified *time.Time
		if row != nil {
			verified = row.LastVerified
		}
		if verified == nil || verified.Before(cutoff) {
			e.Body = ""
			out = append(out, StaleEntry{Entry: e, LastVerified: verified})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		vi, vj := out[i].LastVerified, out[j].LastVerified
		switch {
		case vi == nil && vj == nil:
			return out[i].ID < out[j].ID
		case vi == nil:
			return true
		case vj == nil:
			return false
		default:
			return vi.Before(*vj)
		}
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GraphKind selects a link-graph projection
type GraphKind string

const (
	GraphBacklinks GraphKind = "backlinks"
	GraphOutlinks  GraphKind = "outlinks"
	GraphRelated   GraphKind = "related"
)

// Graph returns a link-graph projection for one entry. Requires the
// rich backend's index.
func (s *Service) Graph(ctx context.Context, ref string, kind GraphKind, limit int) ([]types.Entry, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	f := notebook.Filters{Limit: limit}
	switch kind {
	case GraphBacklinks:
		f.LinkTo = doc.Path
	case GraphOutlinks:
		f.LinkedBy = doc.Path
	case GraphRelated:
		f.Related = doc.Path
	default:
		return nil, brainerr.Validationf("unknown graph projection: %s", kind)
	}

	docs, err := s.nb.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, 0, len(docs))
	for i := range docs {
		e := docs[i].ToEntry()
		e.Body = ""
		out = append(out, e)
	}
	return out, nil
}

// Sections lists the h2/h3 headers of an entry
func (s *Service) Sections(ctx context.Context, ref string) ([]Section, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return ParseSections(doc.Body), nil
}

// Section extracts one named section of an entry
func (s *Service) Section(ctx context.Context, ref, title string, includeSubsections bool) (string, error) {
	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return "", err
	}
	return ExtractSection(doc.Body, title, includeSubsections)
}
