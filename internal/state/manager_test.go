package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CLIAIBRAIN/internal/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "demo")
	if err != nil {
		t.Fatal(err)
	}

	s := types.NewRunnerState("demo", "runner-1", os.Getpid())
	s.Status = types.RunnerPolling
	s.RunningTasks = []types.RunningTask{{
		ID:        "abcd1234",
		Path:      "projects/demo/task/abcd1234-x.md",
		Title:     "x",
		PID:       4242,
		StartedAt: time.Now(),
	}}
	s.Stats.Completed = 3

	if err := m.Save(s); err != nil {
		t.Fatal(err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("loaded state is nil")
	}
	if got.Project != "demo" || got.Status != types.RunnerPolling || got.Stats.Completed != 3 {
		t.Errorf("loaded state = %+v", got)
	}
	if len(got.RunningTasks) != 1 || got.RunningTasks[0].PID != 4242 {
		t.Errorf("running tasks = %+v", got.RunningTasks)
	}

	if pid := m.ReadPID(); pid != os.Getpid() {
		t.Errorf("pid file = %d, want %d", pid, os.Getpid())
	}

	running, err := m.LoadRunning()
	if err != nil {
		t.Fatal(err)
	}
	if len(running) != 1 || running[0].ID != "abcd1234" {
		t.Errorf("running snapshot = %+v", running)
	}
}

func TestLoadAbsentReturnsNil(t *testing.T) {
	m, err := NewManager(t.TempDir(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Load()
	if err != nil || got != nil {
		t.Errorf("Load() = %+v, %v; want nil, nil", got, err)
	}
}

func TestCorruptFilesTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "demo")
	if err != nil {
		t.Fatal(err)
	}

	// truncated JSON, as after a crash mid-write without the rename
	if err := os.WriteFile(filepath.Join(dir, "runner-demo.json"), []byte(`{"project":"de`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "running-demo.json"), []byte(`[{`), 0644); err != nil {
		t.Fatal(err)
	}

	if got, err := m.Load(); err != nil || got != nil {
		t.Errorf("corrupt state: Load() = %+v, %v", got, err)
	}
	if got, err := m.LoadRunning(); err != nil || got != nil {
		t.Errorf("corrupt running: LoadRunning() = %+v, %v", got, err)
	}
}

func TestPriorRunnerLiveness(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, "demo")
	if err != nil {
		t.Fatal(err)
	}

	s := types.NewRunnerState("demo", "runner-1", os.Getpid())
	if err := m.Save(s); err != nil {
		t.Fatal(err)
	}
	if !m.PriorRunnerLive() {
		t.Error("own pid should read as live")
	}

	// an unlikely-to-exist pid
	if err := os.WriteFile(filepath.Join(dir, "runner-demo.pid"), []byte("999999"), 0644); err != nil {
		t.Fatal(err)
	}
	if m.PriorRunnerLive() {
		t.Error("dead pid should read as not live")
	}

	if err := m.ClearPID(); err != nil {
		t.Fatal(err)
	}
	if m.ReadPID() != 0 {
		t.Error("pid file survived ClearPID")
	}
}

func TestFindAllRunnerStates(t *testing.T) {
	dir := t.TempDir()
	for _, project := range []string{"alpha", "beta"} {
		m, err := NewManager(dir, project)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.Save(types.NewRunnerState(project, "r-"+project, os.Getpid())); err != nil {
			t.Fatal(err)
		}
	}

	states, err := FindAllRunnerStates(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("found %d states, want 2", len(states))
	}
	if states["alpha"].RunnerID != "r-alpha" || states["beta"].RunnerID != "r-beta" {
		t.Errorf("states = %+v", states)
	}
}

func TestCleanupStaleStates(t *testing.T) {
	dir := t.TempDir()

	live, err := NewManager(dir, "live")
	if err != nil {
		t.Fatal(err)
	}
	if err := live.Save(types.NewRunnerState("live", "r1", os.Getpid())); err != nil {
		t.Fatal(err)
	}

	dead, err := NewManager(dir, "dead")
	if err != nil {
		t.Fatal(err)
	}
	if err := dead.Save(types.NewRunnerState("dead", "r2", 999999)); err != nil {
		t.Fatal(err)
	}

	cleaned, err := CleanupStaleStates(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(cleaned) != 1 || cleaned[0] != "dead" {
		t.Errorf("cleaned = %v, want [dead]", cleaned)
	}

	states, err := FindAllRunnerStates(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := states["live"]; !ok {
		t.Error("live state was removed")
	}
	if _, ok := states["dead"]; ok {
		t.Error("dead state survived cleanup")
	}
}
