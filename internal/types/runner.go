package types

import "time"

// RunnerStatus tracks the scheduler loop state machine:
// idle → polling → processing → (paused | stopping) → stopped
type RunnerStatus string

const (
	RunnerIdle       RunnerStatus = "idle"
	RunnerPolling    RunnerStatus = "polling"
	RunnerProcessing RunnerStatus = "processing"
	RunnerPaused     RunnerStatus = "paused"
	RunnerStopping   RunnerStatus = "stopping"
	RunnerStopped    RunnerStatus = "stopped"
)

// RunningTask is one supervised child process executing a task
type RunningTask struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Priority  Priority  `json:"priority,omitempty"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	IsResume  bool      `json:"is_resume"`
	Workdir   string    `json:"workdir,omitempty"`
}

// RunnerStats accumulates task outcomes over a runner's lifetime
type RunnerStats struct {
	Completed    int   `json:"completed"`
	Failed       int   `json:"failed"`
	TotalRuntime int64 `json:"total_runtime_ms"`
}

// RunnerState is the durable per-project runner snapshot. The PID and the
// running-tasks list are additionally persisted in separate files so a
// partial write of one cannot corrupt crash recovery.
type RunnerState struct {
	Project      string        `json:"project"`
	RunnerID     string        `json:"runner_id"`
	Status       RunnerStatus  `json:"status"`
	PID          int           `json:"pid"`
	StartedAt    time.Time     `json:"started_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	RunningTasks []RunningTask `json:"running_tasks"`
	Stats        RunnerStats   `json:"stats"`
}

// NewRunnerState creates an idle state for a project
func NewRunnerState(project, runnerID string, pid int) *RunnerState {
	now := time.Now()
	return &RunnerState{
		Project:      project,
		RunnerID:     runnerID,
		Status:       RunnerIdle,
		PID:          pid,
		StartedAt:    now,
		UpdatedAt:    now,
		RunningTasks: []RunningTask{},
	}
}
