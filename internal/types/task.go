package types

// Classification is the scheduling status derived from a task's own state
// plus its dependency and parent context
type Classification string

const (
	ClassReady           Classification = "ready"
	ClassWaiting         Classification = "waiting"
	ClassWaitingOnParent Classification = "waiting_on_parent"
	ClassBlocked         Classification = "blocked"
	ClassBlockedByParent Classification = "blocked_by_parent"
	ClassNotPending      Classification = "not_pending"
)

// BlockReason qualifies a blocked classification
type BlockReason string

const (
	ReasonCircularDependency BlockReason = "circular_dependency"
	ReasonDependencyBlocked  BlockReason = "dependency_blocked"
)

// ClassifiedTask is a task annotated with the dependency engine's verdict.
// ResolvedDeps and UnresolvedDeps together cover the normalized depends_on
// set; dangling refs land in UnresolvedDeps and are never fatal.
type ClassifiedTask struct {
	Entry

	ResolvedDeps    []string       `json:"resolved_deps"`
	UnresolvedDeps  []string       `json:"unresolved_deps,omitempty"`
	ParentChain     []string       `json:"parent_chain,omitempty"`
	Classification  Classification `json:"classification"`
	BlockedBy       []string       `json:"blocked_by,omitempty"`
	BlockedByReason BlockReason    `json:"blocked_by_reason,omitempty"`
	WaitingOn       []string       `json:"waiting_on,omitempty"`
	InCycle         bool           `json:"in_cycle"`
	ResolvedWorkdir string         `json:"resolved_workdir,omitempty"`
}

// ClassifyStats summarizes one classification run
type ClassifyStats struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	Waiting    int `json:"waiting"`
	Blocked    int `json:"blocked"`
	NotPending int `json:"not_pending"`
	InCycle    int `json:"in_cycle"`
}

// ClassificationResult is the dependency engine's full output for a project
type ClassificationResult struct {
	Tasks  []ClassifiedTask `json:"tasks"`
	Cycles [][]string       `json:"cycles"`
	Stats  ClassifyStats    `json:"stats"`
}

// Schedulable reports whether the classification admits the task to the
// ready queue
func (c Classification) Schedulable() bool {
	return c == ClassReady
}

// CountsAsWaiting groups waiting_on_parent with waiting for stats
func (c Classification) CountsAsWaiting() bool {
	return c == ClassWaiting || c == ClassWaitingOnParent
}

// CountsAsBlocked groups blocked_by_parent with blocked for stats
func (c Classification) CountsAsBlocked() bool {
	return c == ClassBlocked || c == ClassBlockedByParent
}
