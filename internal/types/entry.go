package types

import (
	"fmt"
	"time"
)

// EntryType classifies what kind of knowledge an entry holds
type EntryType string

const (
	TypeSummary     EntryType = "summary"
	TypeReport      EntryType = "report"
	TypeWalkthrough EntryType = "walkthrough"
	TypePlan        EntryType = "plan"
	TypePattern     EntryType = "pattern"
	TypeLearning    EntryType = "learning"
	TypeIdea        EntryType = "idea"
	TypeScratch     EntryType = "scratch"
	TypeDecision    EntryType = "decision"
	TypeExploration EntryType = "exploration"
	TypeExecution   EntryType = "execution"
	TypeTask        EntryType = "task"
)

// ValidEntryTypes is the closed set of accepted entry types
var ValidEntryTypes = map[EntryType]bool{
	TypeSummary:     true,
	TypeReport:      true,
	TypeWalkthrough: true,
	TypePlan:        true,
	TypePattern:     true,
	TypeLearning:    true,
	TypeIdea:        true,
	TypeScratch:     true,
	TypeDecision:    true,
	TypeExploration: true,
	TypeExecution:   true,
	TypeTask:        true,
}

// EntryStatus represents the lifecycle state of an entry
type EntryStatus string

const (
	StatusDraft      EntryStatus = "draft"
	StatusPending    EntryStatus = "pending"
	StatusActive     EntryStatus = "active"
	StatusInProgress EntryStatus = "in_progress"
	StatusBlocked    EntryStatus = "blocked"
	StatusCompleted  EntryStatus = "completed"
	StatusValidated  EntryStatus = "validated"
	StatusSuperseded EntryStatus = "superseded"
	StatusArchived   EntryStatus = "archived"
	// StatusCancelled is not offered as a transition target but frontmatter
	// is user-authored, so it is accepted anywhere statuses are read.
	StatusCancelled EntryStatus = "cancelled"
)

// ValidEntryStatuses is the set of statuses accepted on write
var ValidEntryStatuses = map[EntryStatus]bool{
	StatusDraft:      true,
	StatusPending:    true,
	StatusActive:     true,
	StatusInProgress: true,
	StatusBlocked:    true,
	StatusCompleted:  true,
	StatusValidated:  true,
	StatusSuperseded: true,
	StatusArchived:   true,
}

// DefaultStatus returns the status a new entry gets when none is supplied
func DefaultStatus(t EntryType) EntryStatus {
	if t == TypeTask {
		return StatusDraft
	}
	return StatusActive
}

// Priority orders tasks for scheduling
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PriorityRank maps priorities to sort keys; lower runs first.
// An absent priority ranks with medium.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Entry is a persisted unit of knowledge or work: a markdown file with
// YAML frontmatter under the notebook root. ID is the 8-char lowercase
// alphanumeric prefix of the file name and is injective with Path.
type Entry struct {
	ID       string      `json:"id"`
	Path     string      `json:"path"`
	Title    string      `json:"title"`
	Type     EntryType   `json:"type"`
	Status   EntryStatus `json:"status"`
	Priority Priority    `json:"priority,omitempty"`
	Tags     []string    `json:"tags,omitempty"`
	Project  string      `json:"project_id,omitempty"`
	Created  time.Time   `json:"created"`
	Modified time.Time   `json:"modified"`
	Body     string      `json:"content,omitempty"`

	// Task-only extensions; empty for other types.
	DependsOn           []string `json:"depends_on,omitempty"`
	ParentID            string   `json:"parent_id,omitempty"`
	FeatureID           string   `json:"feature_id,omitempty"`
	FeaturePriority     Priority `json:"feature_priority,omitempty"`
	FeatureDependsOn    []string `json:"feature_depends_on,omitempty"`
	Workdir             string   `json:"workdir,omitempty"`
	Worktree            string   `json:"worktree,omitempty"`
	GitRemote           string   `json:"git_remote,omitempty"`
	GitBranch           string   `json:"git_branch,omitempty"`
	UserOriginalRequest string   `json:"user_original_request,omitempty"`
}

// IsTask reports whether the entry participates in the dependency graph
func (e *Entry) IsTask() bool {
	return e.Type == TypeTask
}

// Stem returns the file name without directory or .md suffix
func (e *Entry) Stem() string {
	base := e.Path
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	if len(base) > 3 && base[len(base)-3:] == ".md" {
		base = base[:len(base)-3]
	}
	return base
}

// Validate checks the closed enums and the id shape
func (e *Entry) Validate() error {
	if !ValidEntryTypes[e.Type] {
		return fmt.Errorf("invalid entry type: %s", e.Type)
	}
	if e.Status != "" && e.Status != StatusCancelled && !ValidEntryStatuses[e.Status] {
		return fmt.Errorf("invalid entry status: %s", e.Status)
	}
	if !ValidEntryID(e.ID) {
		return fmt.Errorf("invalid entry id: %q", e.ID)
	}
	return nil
}

// ValidEntryID reports whether id is exactly 8 lowercase alphanumerics
func ValidEntryID(id string) bool {
	if len(id) != 8 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
