package entries

import (
	"context"
	"strings"
	"time"

	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/types"
)

// UpdateRequest names the fields an update may touch. Everything left
// nil stays byte-identical in the file.
type UpdateRequest struct {
	Status           *types.EntryStatus `json:"status,omitempty"`
	Title            *string            `json:"title,omitempty"`
	Content          *string            `json:"content,omitempty"`
	Append           *string            `json:"append,omitempty"`
	Note             *string            `json:"note,omitempty"`
	DependsOn        *[]string          `json:"depends_on,omitempty"`
	FeatureID        *string            `json:"feature_id,omitempty"`
	FeaturePriority  *types.Priority    `json:"feature_priority,omitempty"`
	FeatureDependsOn *[]string          `json:"feature_depends_on,omitempty"`
}

// Empty reports whether the request names no field at all
func (r UpdateRequest) Empty() bool {
	return r.Status == nil && r.Title == nil && r.Content == nil &&
		r.Append == nil && r.Note == nil && r.DependsOn == nil &&
		r.FeatureID == nil && r.FeaturePriority == nil && r.FeatureDependsOn == nil
}

// Update applies a field-level update. Frontmatter keys not named in
// the request are preserved byte-equivalent; a status change or note
// appends a dated footer unless the caller replaced the full content.
func (s *Service) Update(ctx context.Context, ref string, req UpdateRequest) (*types.Entry, error) {
	if req.Empty() {
		return nil, brainerr.Validation("update requires at least one field")
	}
	if req.Status != nil && !types.ValidEntryStatuses[*req.Status] {
		return nil, brainerr.Validation("invalid status: "+string(*req.Status),
			brainerr.FieldError{Field: "status", Message: "must be one of the status enum"})
	}
	if req.FeaturePriority != nil && *req.FeaturePriority != "" {
		switch *req.FeaturePriority {
		case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		default:
			return nil, brainerr.Validation("invalid feature_priority",
				brainerr.FieldError{Field: "feature_priority", Message: "must be high, medium, or low"})
		}
	}

	doc, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	path := doc.Path

	unlock := s.locks.lock(path)
	defer unlock()

	text, err := s.nb.Read(path)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := notebook.SanitizeTitle(*req.Title)
		if title == "" {
			return nil, brainerr.Validation("title must not be empty")
		}
		text, _ = notebook.SetScalarField(text, "title", title)
	}

	statusChanged := false
	if req.Status != nil {
		text, _ = notebook.SetScalarField(text, "status", string(*req.Status))
		text = notebook.RemoveTag(text, string(*req.Status))
		statusChanged = true
	}

	if req.DependsOn != nil {
		text, _ = notebook.SetListField(text, "depends_on", sanitizeRefs(*req.DependsOn))
	}
	if req.FeatureID != nil {
		if *req.FeatureID == "" {
			text, _ = notebook.SetListField(text, "feature_id", nil)
		} else {
			text, _ = notebook.SetScalarField(text, "feature_id", *req.FeatureID)
		}
	}
	if req.FeaturePriority != nil {
		text, _ = notebook.SetScalarField(text, "feature_priority", string(*req.FeaturePriority))
	}
	if req.FeatureDependsOn != nil {
		text, _ = notebook.SetListField(text, "feature_depends_on", sanitizeRefs(*req.FeatureDependsOn))
	}

	contentReplaced := false
	if req.Content != nil {
		text = replaceBody(text, notebook.SanitizeText(*req.Content))
		contentReplaced = true
	}
	if req.Append != nil && *req.Append != "" {
		text = strings.TrimRight(text, "\n") + "\n\n" + strings.TrimRight(notebook.SanitizeText(*req.Append), "\n") + "\n"
	}

	// dated footer on status change or note, suppressed by full replace
	if (statusChanged || (req.Note != nil && *req.Note != "")) && !contentReplaced {
		status := ""
		if req.Status != nil {
			status = string(*req.Status)
		} else {
			fm, _, _ := notebook.ParseFrontmatter(text)
			status = fm.GetString("status")
		}
		footer := "*Status changed to " + status + " on " + time.Now().Format("2006-01-02")
		if req.Note != nil && *req.Note != "" {
			footer += ": " + notebook.SanitizeText(*req.Note)
		}
		footer += "*"
		text = strings.TrimRight(text, "\n") + "\n\n" + footer + "\n"
	}

	if err := s.nb.Write(path, text); err != nil {
		return nil, err
	}

	updated, err := s.nb.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	entry := updated.ToEntry()
	s.log.Info().Str("id", entry.ID).Str("path", path).Msg("entry updated")
	return &entry, nil
}

// replaceBody swaps everything after the frontmatter fence for content,
// leaving the frontmatter block untouched
func replaceBody(text, content string) string {
	lines := strings.Split(text, "\n")
	fence := -1
	if len(lines) > 0 && strings.TrimRight(lines[0], "\r") == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimRight(lines[i], "\r") == "---" {
				fence = i
				break
			}
		}
	}

	body := strings.TrimRight(content, "\n") + "\n"
	if fence == -1 {
		return body
	}
	head := strings.Join(lines[:fence+1], "\n")
	return head + "\n" + body
}
