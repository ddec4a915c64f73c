// Package claims is the in-memory lease registry: the authoritative
// source for which runner holds which task. One mutex serializes every
// operation because claim-or-refresh is read-modify-write over a shared
// map. Nothing persists across restart; runners re-claim on startup.
package claims

import (
	"sync"
	"time"

	"github.com/CLIAIBRAIN/internal/types"
)

// StaleAfter is how long a claim stands before another runner may
// override it
const StaleAfter = 5 * time.Minute

type key struct {
	project string
	taskID  string
}

type claim struct {
	runnerID  string
	claimedAt time.Time
}

// Registry tracks one claim per (project, taskId)
type Registry struct {
	mu     sync.Mutex
	claims map[key]claim
	now    func() time.Time
}

// NewRegistry creates an empty claim registry
func NewRegistry() *Registry {
	return &Registry{
		claims: make(map[key]claim),
		now:    time.Now,
	}
}

// NewRegistryWithClock creates a registry with an injected clock for
// staleness tests
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		claims: make(map[key]claim),
		now:    now,
	}
}

// Result reports the outcome of one claim attempt. On conflict Existing
// carries the holder so the caller can surface it.
type Result struct {
	Success  bool             `json:"success"`
	Existing *types.ClaimInfo `json:"existing,omitempty"`
}

// Claim acquires or refreshes the lease for (project, taskID).
// Semantics: absent inserts; same runner refreshes; a stale holder is
// evicted; otherwise conflict with the existing claim info.
func (r *Registry) Claim(project, taskID, runnerID string) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{project, taskID}
	now := r.now()

	existing, held := r.claims[k]
	if held && existing.runnerID != runnerID && now.Sub(existing.claimedAt) <= StaleAfter {
		return Result{
			Success: false,
			Existing: &types.ClaimInfo{
				ClaimedBy: existing.runnerID,
				ClaimedAt: existing.claimedAt.UnixMilli(),
				IsStale:   false,
			},
		}
	}

	r.claims[k] = claim{runnerID: runnerID, claimedAt: now}
	return Result{Success: true, Existing: &types.ClaimInfo{
		ClaimedBy: runnerID,
		ClaimedAt: now.UnixMilli(),
	}}
}

// Release drops the claim if present and reports whether one existed.
// Releasing an unclaimed task is not an error.
func (r *Registry) Release(project, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{project, taskID}
	_, held := r.claims[k]
	delete(r.claims, k)
	return held
}

// Status returns the current claim with staleness derived from now
func (r *Registry) Status(project, taskID string) types.ClaimStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, held := r.claims[key{project, taskID}]
	if !held {
		return types.ClaimStatus{Claimed: false}
	}
	return types.ClaimStatus{
		Claimed: true,
		Claim: &types.ClaimInfo{
			ClaimedBy: c.runnerID,
			ClaimedAt: c.claimedAt.UnixMilli(),
			IsStale:   r.now().Sub(c.claimedAt) > StaleAfter,
		},
	}
}

// Holder reports the runner currently holding a non-stale claim, ""
// when unclaimed or stale
func (r *Registry) Holder(project, taskID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, held := r.claims[key{project, taskID}]
	if !held || r.now().Sub(c.claimedAt) > StaleAfter {
		return ""
	}
	return c.runnerID
}

// Count returns the number of live claims for health output
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

// CountProject returns the number of claims held under one project
func (r *Registry) CountProject(project string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.claims {
		if k.project == project {
			n++
		}
	}
	return n
}
