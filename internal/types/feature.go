package types

// FeatureStats counts a feature's member tasks by scheduling state
type FeatureStats struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	Waiting    int `json:"waiting"`
	Blocked    int `json:"blocked"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// Feature aggregates the tasks sharing one feature_id. Priority is the
// highest urgency over member feature_priority (falling back to member
// priority); inter-feature edges come from member feature_depends_on.
type Feature struct {
	ID                string         `json:"id"`
	Priority          Priority       `json:"priority"`
	Status            EntryStatus    `json:"status"`
	Classification    Classification `json:"classification"`
	TaskStats         FeatureStats   `json:"task_stats"`
	BlockedByFeatures []string       `json:"blocked_by_features,omitempty"`
	WaitingOnFeatures []string       `json:"waiting_on_features,omitempty"`
	InCycle           bool           `json:"in_cycle"`
}

// FeatureResult is the feature engine's full output for a project
type FeatureResult struct {
	Features []Feature  `json:"features"`
	Cycles   [][]string `json:"cycles"`
}
