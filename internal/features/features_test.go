package features

import (
	"testing"

	"github.com/CLIAIBRAIN/internal/types"
)

func member(id, feature string, status types.EntryStatus, class types.Classification) types.ClassifiedTask {
	return types.ClassifiedTask{
		Entry: types.Entry{
			ID:        id,
			Type:      types.TypeTask,
			Status:    status,
			FeatureID: feature,
		},
		Classification: class,
	}
}

func feature(t *testing.T, r types.FeatureResult, id string) *types.Feature {
	t.Helper()
	for i := range r.Features {
		if r.Features[i].ID == id {
			return &r.Features[i]
		}
	}
	t.Fatalf("feature %s not in result", id)
	return nil
}

func TestUngroupedTasksAreNotFeatures(t *testing.T) {
	tasks := []types.ClassifiedTask{
		member("aaaaaaa1", "", types.StatusPending, types.ClassReady),
		member("bbbbbbb1", "auth", types.StatusPending, types.ClassReady),
	}
	r := Aggregate(tasks)
	if len(r.Features) != 1 || r.Features[0].ID != "auth" {
		t.Fatalf("features = %+v", r.Features)
	}
}

func TestStatusLadder(t *testing.T) {
	tests := []struct {
		name   string
		tasks  []types.ClassifiedTask
		status types.EntryStatus
		class  types.Classification
	}{
		{
			name: "in_progress wins",
			tasks: []types.ClassifiedTask{
				member("aaaaaaa1", "f", types.StatusInProgress, types.ClassNotPending),
				member("bbbbbbb1", "f", types.StatusPending, types.ClassBlocked),
			},
			status: types.StatusInProgress,
			class:  types.ClassNotPending,
		},
		{
			name: "blocked member blocks",
			tasks: []types.ClassifiedTask{
				member("aaaaaaa1", "f", types.StatusPending, types.ClassBlocked),
				member("bbbbbbb1", "f", types.StatusPending, types.ClassReady),
			},
			status: types.StatusBlocked,
			class:  types.ClassBlocked,
		},
		{
			name: "all completed",
			tasks: []types.ClassifiedTask{
				member("aaaaaaa1", "f", types.StatusCompleted, types.ClassNotPending),
				member("bbbbbbb1", "f", types.StatusValidated, types.ClassNotPending),
			},
			status: types.StatusCompleted,
			class:  types.ClassNotPending,
		},
		{
			name: "ready when any ready and none waiting",
			tasks: []types.ClassifiedTask{
				member("aaaaaaa1", "f", types.StatusPending, types.ClassReady),
				member("bbbbbbb1", "f", types.StatusCompleted, types.ClassNotPending),
			},
			status: types.StatusActive,
			class:  types.ClassReady,
		},
		{
			name: "waiting otherwise",
			tasks: []types.ClassifiedTask{
				member("aaaaaaa1", "f", types.StatusPending, types.ClassReady),
				member("bbbbbbb1", "f", types.StatusPending, types.ClassWaiting),
			},
			status: types.StatusPending,
			class:  types.ClassWaiting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Aggregate(tt.tasks)
			f := feature(t, r, "f")
			if f.Status != tt.status || f.Classification != tt.class {
				t.Errorf("got status=%s class=%s, want status=%s class=%s",
					f.Status, f.Classification, tt.status, tt.class)
			}
		})
	}
}

func TestPriorityIsMaxUrgency(t *testing.T) {
	a := member("aaaaaaa1", "f", types.StatusPending, types.ClassReady)
	a.Priority = types.PriorityLow
	b := member("bbbbbbb1", "f", types.StatusPending, types.ClassReady)
	b.FeaturePriority = types.PriorityHigh

	r := Aggregate([]types.ClassifiedTask{a, b})
	if got := feature(t, r, "f").Priority; got != types.PriorityHigh {
		t.Errorf("priority = %s, want high", got)
	}
}

func TestInterFeatureEdges(t *testing.T) {
	up := member("aaaaaaa1", "upstream", types.StatusPending, types.ClassReady)
	down := member("bbbbbbb1", "downstream", types.StatusPending, types.ClassReady)
	down.FeatureDependsOn = []string{"upstream"}

	r := Aggregate([]types.ClassifiedTask{up, down})
	d := feature(t, r, "downstream")
	if len(d.WaitingOnFeatures) != 1 || d.WaitingOnFeatures[0] != "upstream" {
		t.Errorf("waiting_on_features = %v", d.WaitingOnFeatures)
	}
	if d.Classification != types.ClassWaiting {
		t.Errorf("downstream classification = %s, want waiting", d.Classification)
	}

	// a blocked upstream task escalates waiting to blocked
	up.Classification = types.ClassBlocked
	r = Aggregate([]types.ClassifiedTask{up, down})
	d = feature(t, r, "downstream")
	if len(d.BlockedByFeatures) != 1 || d.Classification != types.ClassBlocked {
		t.Errorf("downstream = %+v, want blocked by upstream", d)
	}
}

func TestCompletedUpstreamReleases(t *testing.T) {
	up := member("aaaaaaa1", "upstream", types.StatusCompleted, types.ClassNotPending)
	down := member("bbbbbbb1", "downstream", types.StatusPending, types.ClassReady)
	down.FeatureDependsOn = []string{"upstream"}

	r := Aggregate([]types.ClassifiedTask{up, down})
	d := feature(t, r, "downstream")
	if d.Classification != types.ClassReady {
		t.Errorf("downstream classification = %s, want ready", d.Classification)
	}
}

func TestFeatureCyclesSurfacedAndExcludedFromReady(t *testing.T) {
	a := member("aaaaaaa1", "fa", types.StatusPending, types.ClassReady)
	a.FeatureDependsOn = []string{"fb"}
	b := member("bbbbbbb1", "fb", types.StatusPending, types.ClassReady)
	b.FeatureDependsOn = []string{"fa"}

	r := Aggregate([]types.ClassifiedTask{a, b})
	if len(r.Cycles) != 1 || len(r.Cycles[0]) != 2 {
		t.Fatalf("cycles = %v", r.Cycles)
	}
	for _, id := range []string{"fa", "fb"} {
		if !feature(t, r, id).InCycle {
			t.Errorf("%s not marked in_cycle", id)
		}
	}
	if ready := Ready(r); len(ready) != 0 {
		t.Errorf("cyclic features must not be ready: %+v", ready)
	}
}

func TestNextMatchesHeadOfReady(t *testing.T) {
	a := member("aaaaaaa1", "fa", types.StatusPending, types.ClassReady)
	a.FeaturePriority = types.PriorityLow
	b := member("bbbbbbb1", "fb", types.StatusPending, types.ClassReady)
	b.FeaturePriority = types.PriorityHigh

	r := Aggregate([]types.ClassifiedTask{a, b})
	next := Next(r)
	if next == nil || next.ID != "fb" {
		t.Fatalf("next = %+v, want fb", next)
	}
	ready := Ready(r)
	if ready[0].ID != next.ID {
		t.Errorf("next != head of ready")
	}
}
