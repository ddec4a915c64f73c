// Package features aggregates classified tasks into feature units by
// shared feature_id and resolves inter-feature dependencies. Like the
// dependency engine it is pure and re-run per query.
package features

import (
	"sort"

	"github.com/CLIAIBRAIN/internal/types"
)

// Aggregate groups the classified tasks by feature_id. Tasks without a
// feature_id are not features and do not appear in the result.
func Aggregate(tasks []types.ClassifiedTask) types.FeatureResult {
	groups := make(map[string][]*types.ClassifiedTask)
	var order []string
	for i := range tasks {
		fid := tasks[i].FeatureID
		if fid == "" {
			continue
		}
		if _, ok := groups[fid]; !ok {
			order = append(order, fid)
		}
		groups[fid] = append(groups[fid], &tasks[i])
	}
	sort.Strings(order)

	features := make([]types.Feature, 0, len(order))
	edges := make(map[string][]string, len(order))
	for _, fid := range order {
		f := buildFeature(fid, groups[fid], groups)
		edges[fid] = append(edges[fid], f.BlockedByFeatures...)
		edges[fid] = append(edges[fid], f.WaitingOnFeatures...)
		features = append(features, f)
	}

	cycles, inCycle := featureCycles(order, edges)
	for i := range features {
		if inCycle[features[i].ID] {
			features[i].InCycle = true
			if features[i].Classification == types.ClassReady {
				features[i].Classification = types.ClassBlocked
			}
			if features[i].Status == types.StatusActive {
				features[i].Status = types.StatusBlocked
			}
		}
	}

	return types.FeatureResult{Features: features, Cycles: cycles}
}

func buildFeature(fid string, members []*types.ClassifiedTask, groups map[string][]*types.ClassifiedTask) types.Feature {
	f := types.Feature{ID: fid, Priority: types.PriorityLow}

	depSet := make(map[string]bool)
	for _, m := range members {
		f.TaskStats.Total++
		switch {
		case m.Status == types.StatusInProgress:
			f.TaskStats.InProgress++
		case m.Status == types.StatusCompleted || m.Status == types.StatusValidated:
			f.TaskStats.Completed++
		case m.Classification == types.ClassReady:
			f.TaskStats.Ready++
		case m.Classification.CountsAsWaiting():
			f.TaskStats.Waiting++
		case m.Classification.CountsAsBlocked():
			f.TaskStats.Blocked++
		}

		p := m.FeaturePriority
		if p == "" {
			p = m.Priority
		}
		if p != "" && types.PriorityRank(p) < types.PriorityRank(f.Priority) {
			f.Priority = p
		}

		for _, dep := range m.FeatureDependsOn {
			if dep != "" && dep != fid {
				depSet[dep] = true
			}
		}
	}

	// a dependency feature blocks when any of its tasks is blocked and
	// holds the feature waiting until every task is completed
	var blockedBy, waitingOn []string
	for dep := range depSet {
		depMembers, known := groups[dep]
		if !known {
			// dangling feature refs are reported as waiting, never fatal
			waitingOn = append(waitingOn, dep)
			continue
		}
		if anyBlocked(depMembers) {
			blockedBy = append(blockedBy, dep)
		} else if !allDone(depMembers) {
			waitingOn = append(waitingOn, dep)
		}
	}
	sort.Strings(blockedBy)
	sort.Strings(waitingOn)
	f.BlockedByFeatures = blockedBy
	f.WaitingOnFeatures = waitingOn

	f.Status, f.Classification = featureState(f)
	return f
}

// featureState applies the ladder: in_progress, blocked, completed,
// ready, waiting
func featureState(f types.Feature) (types.EntryStatus, types.Classification) {
	s := f.TaskStats
	switch {
	case s.InProgress > 0:
		return types.StatusInProgress, types.ClassNotPending
	case s.Blocked > 0 || len(f.BlockedByFeatures) > 0:
		return types.StatusBlocked, types.ClassBlocked
	case s.Completed == s.Total && s.Total > 0:
		return types.StatusCompleted, types.ClassNotPending
	case s.Ready > 0 && s.Waiting == 0 && len(f.WaitingOnFeatures) == 0:
		return types.StatusActive, types.ClassReady
	default:
		return types.StatusPending, types.ClassWaiting
	}
}

func anyBlocked(members []*types.ClassifiedTask) bool {
	for _, m := range members {
		if m.Status == types.StatusBlocked || m.Classification.CountsAsBlocked() {
			return true
		}
	}
	return false
}

func allDone(members []*types.ClassifiedTask) bool {
	for _, m := range members {
		if m.Status != types.StatusCompleted && m.Status != types.StatusValidated {
			return false
		}
	}
	return true
}

// featureCycles finds dependency loops between features with a DFS over
// the inter-feature edges; every feature on a loop is reported once
func featureCycles(ids []string, edges map[string][]string) ([][]string, map[string]bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	inCycle := make(map[string]bool)
	var cycles [][]string

	var stack []string
	var visit func(string)
	visit = func(id string) {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range edges[id] {
			if _, known := edges[dep]; !known {
				continue
			}
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// back edge: everything from dep to the stack top loops
				var cyc []string
				for i := len(stack) - 1; i >= 0; i-- {
					cyc = append(cyc, stack[i])
					inCycle[stack[i]] = true
					if stack[i] == dep {
						break
					}
				}
				sort.Strings(cyc)
				cycles = append(cycles, cyc)
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, inCycle
}

// Ready returns the features currently schedulable, ordered by priority
// then id
func Ready(r types.FeatureResult) []types.Feature {
	out := make([]types.Feature, 0, len(r.Features))
	for _, f := range r.Features {
		if f.Classification == types.ClassReady && !f.InCycle {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := types.PriorityRank(out[i].Priority), types.PriorityRank(out[j].Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Waiting returns the features holding for dependencies or members
func Waiting(r types.FeatureResult) []types.Feature {
	return filter(r, func(f types.Feature) bool { return f.Classification == types.ClassWaiting })
}

// Blocked returns the blocked features
func Blocked(r types.FeatureResult) []types.Feature {
	return filter(r, func(f types.Feature) bool { return f.Classification == types.ClassBlocked })
}

// Next returns the top ready feature, nil when none
func Next(r types.FeatureResult) *types.Feature {
	ready := Ready(r)
	if len(ready) == 0 {
		return nil
	}
	return &ready[0]
}

func filter(r types.FeatureResult, keep func(types.Feature) bool) []types.Feature {
	out := make([]types.Feature, 0, len(r.Features))
	for _, f := range r.Features {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
