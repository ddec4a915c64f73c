package notebook

import (
	"path"
	"strings"
	"time"

	"github.com/CLIAIBRAIN/internal/types"
)

// Document is one indexed notebook row: the file-backed record both
// backends return
type Document struct {
	Path     string                 `json:"path"`
	Title    string                 `json:"title"`
	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata"`
	Lead     string                 `json:"lead"`
	Body     string                 `json:"body"`
	Created  time.Time              `json:"created"`
	Modified time.Time              `json:"modified"`
}

// IDFromPath extracts the 8-char entry id from a notebook path, "" when
// the file name does not carry one
func IDFromPath(p string) string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, ".md")
	if len(base) < 8 {
		return ""
	}
	id := base[:8]
	if !types.ValidEntryID(id) {
		return ""
	}
	if len(base) > 8 && base[8] != '-' {
		return ""
	}
	return id
}

// ProjectFromPath returns the project directory for paths under
// projects/, "" for global entries
func ProjectFromPath(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) >= 2 && parts[0] == "projects" {
		return parts[1]
	}
	return ""
}

// TypeFromPath returns the entry type implied by the directory layout
// <root>/{global,projects/<p>}/<type>/<file>
func TypeFromPath(p string) types.EntryType {
	parts := strings.Split(p, "/")
	switch {
	case len(parts) >= 3 && parts[0] == "global":
		return types.EntryType(parts[1])
	case len(parts) >= 4 && parts[0] == "projects":
		return types.EntryType(parts[2])
	}
	return ""
}

// EntryPath composes the canonical relative path for a new entry
func EntryPath(project string, typ types.EntryType, id, title string) string {
	name := id + "-" + Slugify(title) + ".md"
	if project == "" {
		return path.Join("global", string(typ), name)
	}
	return path.Join("projects", project, string(typ), name)
}

// ToEntry projects the document onto the entry data model using its
// frontmatter fields and path-derived identity
func (d *Document) ToEntry() types.Entry {
	fm := Frontmatter{Fields: d.Metadata}
	if fm.Fields == nil {
		fm.Fields = map[string]interface{}{}
	}

	typ := types.EntryType(fm.GetString("type"))
	if typ == "" {
		typ = TypeFromPath(d.Path)
	}

	status := types.EntryStatus(fm.GetString("status"))
	if status == "" {
		status = types.DefaultStatus(typ)
	}

	title := d.Title
	if title == "" {
		title = fm.GetString("title")
	}

	created := fm.GetTime("created")
	if created.IsZero() {
		created = d.Created
	}
	modified := d.Modified
	if modified.IsZero() {
		modified = fm.GetTime("modified")
	}

	tags := d.Tags
	if len(tags) == 0 {
		tags = fm.GetStringList("tags")
	}

	return types.Entry{
		ID:       IDFromPath(d.Path),
		Path:     d.Path,
		Title:    title,
		Type:     typ,
		Status:   status,
		Priority: types.Priority(fm.GetString("priority")),
		Tags:     tags,
		Project:  ProjectFromPath(d.Path),
		Created:  created,
		Modified: modified,
		Body:     d.Body,

		DependsOn:           fm.GetStringList("depends_on"),
		ParentID:            fm.GetString("parent_id"),
		FeatureID:           fm.GetString("feature_id"),
		FeaturePriority:     types.Priority(fm.GetString("feature_priority")),
		FeatureDependsOn:    fm.GetStringList("feature_depends_on"),
		Workdir:             fm.GetString("workdir"),
		Worktree:            fm.GetString("worktree"),
		GitRemote:           fm.GetString("git_remote"),
		GitBranch:           fm.GetString("git_branch"),
		UserOriginalRequest: fm.GetString("user_original_request"),
	}
}

// LeadFromBody extracts the first paragraph of prose, skipping headings
// and blank lines
func LeadFromBody(body string) string {
	var lead []string
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(lead) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if len(lead) > 0 {
				break
			}
			continue
		}
		lead = append(lead, trimmed)
	}
	return strings.Join(lead, " ")
}
