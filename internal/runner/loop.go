package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/apiclient"
	"github.com/CLIAIBRAIN/internal/brainerr"
	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/state"
	"github.com/CLIAIBRAIN/internal/types"
)

// healthCacheTTL is how long a good health probe is trusted
const healthCacheTTL = 10 * time.Second

// Runner is one scheduler loop instance for one project
type Runner struct {
	cfg      types.RunnerConfig
	api      *apiclient.Client
	launcher Launcher
	sup      *Supervisor
	state    *state.Manager
	runnerID string
	log      zerolog.Logger

	st          *types.RunnerState
	healthOKAt  time.Time
	resumeDone  bool
	recovered   []types.RunningTask
	lastPoll    time.Time
	haltErr     error
}

// New creates a runner. The launcher seam lets tests inject a fake
// process backend.
func New(cfg types.RunnerConfig, api *apiclient.Client, launcher Launcher) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, brainerr.Validation(err.Error())
	}
	if launcher == nil {
		launcher = ExecLauncher{}
	}

	sm, err := state.NewManager(cfg.StateDir, cfg.Project)
	if err != nil {
		return nil, brainerr.Io("init state manager", err)
	}

	runnerID := "runner-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return &Runner{
		cfg:      cfg,
		api:      api,
		launcher: launcher,
		sup:      NewSupervisor(cfg.MaxParallel),
		state:    sm,
		runnerID: runnerID,
		log: logging.WithComponent("runner").With().
			Str("project", cfg.Project).Str("runner_id", runnerID).Logger(),
	}, nil
}

// RunnerID returns this runner's lease identity
func (r *Runner) RunnerID() string { return r.runnerID }

// State returns the current runner snapshot
func (r *Runner) State() *types.RunnerState { return r.st }

// Run drives the scheduler loop until ctx is cancelled or a fatal
// error halts it. On return all children are stopped, their claims
// released, and state persisted.
func (r *Runner) Run(ctx context.Context) error {
	if r.state.PriorRunnerLive() {
		return brainerr.Conflict(
			fmt.Sprintf("runner already active for project %s (pid %d)", r.cfg.Project, r.state.ReadPID()),
			nil)
	}
	r.state.ClearPID()

	recovered, err := r.state.LoadRunning()
	if err != nil {
		r.log.Warn().Err(err).Msg("could not read prior running tasks")
	}
	r.recovered = recovered

	r.st = types.NewRunnerState(r.cfg.Project, r.runnerID, os.Getpid())
	r.st.Status = types.RunnerIdle
	if err := r.state.Save(r.st); err != nil {
		return err
	}

	r.log.Info().Int("max_parallel", r.cfg.MaxParallel).
		Dur("poll_interval", r.cfg.PollInterval).Msg("runner started")

	for {
		select {
		case <-ctx.Done():
			return r.shutdown()
		default:
		}

		r.tick(ctx)
		if r.haltErr != nil {
			r.shutdown()
			return r.haltErr
		}

		if err := r.sleep(ctx); err != nil {
			return r.shutdown()
		}
	}
}

// RunOne claims the single top ready task and blocks until its agent
// exits. Used by the one-shot CLI mode; the polling loop is never
// entered.
func (r *Runner) RunOne(ctx context.Context) error {
	r.st = types.NewRunnerState(r.cfg.Project, r.runnerID, os.Getpid())

	if !r.healthy(ctx) {
		return brainerr.Unavailable("api is not reachable or unhealthy")
	}
	ready, err := r.api.ReadyTasks(ctx, r.cfg.Project)
	if err != nil {
		return err
	}

	var picked *types.ClassifiedTask
	for i := range ready {
		if !r.excluded(&ready[i]) {
			picked = &ready[i]
			break
		}
	}
	if picked == nil {
		return brainerr.NotFound("no ready tasks")
	}

	r.startTask(ctx, picked, false)
	if len(r.st.RunningTasks) == 0 {
		return brainerr.Internal("task could not be started", nil)
	}

	select {
	case exit := <-r.sup.Exits():
		r.finishTask(ctx, exit)
		if exit.Code != 0 || exit.Err != nil {
			return fmt.Errorf("task %s failed with exit code %d", exit.TaskID, exit.Code)
		}
		return nil
	case <-ctx.Done():
		return r.shutdown()
	}
}

// tick is one loop body iteration: drain exits, health-gate, resume,
// fetch, claim and spawn
func (r *Runner) tick(ctx context.Context) {
	r.lastPoll = time.Now()
	r.drainExits(ctx)

	r.st.Status = types.RunnerPolling
	if !r.healthy(ctx) {
		r.log.Debug().Msg("api unhealthy, waiting a poll interval")
		return
	}

	if !r.resumeDone {
		r.reconcile(ctx)
		r.resumeDone = true
	}

	ready, err := r.api.ReadyTasks(ctx, r.cfg.Project)
	if err != nil {
		r.handleAPIError(err, "fetch ready tasks")
		return
	}

	r.st.Status = types.RunnerProcessing
	for i := range ready {
		if r.sup.Running() >= r.cfg.MaxParallel {
			break
		}
		t := &ready[i]
		if r.excluded(t) || r.alreadyRunning(t.ID) {
			continue
		}
		r.startTask(ctx, t, false)
	}

	if err := r.state.Save(r.st); err != nil {
		r.log.Error().Err(err).Msg("state save failed")
	}
}

// reconcile handles tasks left in_progress by a prior runner: resume
// them when configured, otherwise revert them to pending. Tasks held
// by a live foreign claim are left alone.
func (r *Runner) reconcile(ctx context.Context) {
	inProgress, err := r.api.InProgressTasks(ctx, r.cfg.Project)
	if err != nil {
		r.handleAPIError(err, "fetch in_progress tasks")
		return
	}

	wasMine := make(map[string]bool, len(r.recovered))
	for _, rt := range r.recovered {
		wasMine[rt.ID] = true
	}

	for i := range inProgress {
		t := &inProgress[i]
		if err := r.api.Claim(ctx, r.cfg.Project, t.ID, r.runnerID); err != nil {
			if brainerr.IsKind(err, brainerr.KindConflict) {
				r.log.Debug().Str("task_id", t.ID).Msg("in_progress task held by another runner, leaving alone")
				continue
			}
			r.handleAPIError(err, "reclaim in_progress task")
			continue
		}

		if r.cfg.Resume && r.workdirFor(t) != "" {
			r.log.Info().Str("task_id", t.ID).Bool("was_mine", wasMine[t.ID]).Msg("resuming interrupted task")
			r.startClaimed(ctx, t, true)
			continue
		}

		// no-resume policy: operator gets the task back as pending
		if err := r.api.UpdateStatus(ctx, t.ID, types.StatusPending, "reverted by runner after restart"); err != nil {
			r.log.Warn().Err(err).Str("task_id", t.ID).Msg("revert to pending failed")
		}
		r.api.Release(ctx, r.cfg.Project, t.ID)
	}
	r.recovered = nil
}

// startTask claims and starts one ready task; claim conflicts drop the
// task silently so the loop tries the next one
func (r *Runner) startTask(ctx context.Context, t *types.ClassifiedTask, isResume bool) {
	if err := r.api.Claim(ctx, r.cfg.Project, t.ID, r.runnerID); err != nil {
		if brainerr.IsKind(err, brainerr.KindConflict) {
			r.log.Debug().Str("task_id", t.ID).Msg("claim conflict, skipping")
			return
		}
		r.handleAPIError(err, "claim task")
		return
	}

	if err := r.api.UpdateStatus(ctx, t.ID, types.StatusInProgress, ""); err != nil {
		r.log.Warn().Err(err).Str("task_id", t.ID).Msg("status transition failed, releasing")
		r.api.Release(ctx, r.cfg.Project, t.ID)
		return
	}

	r.startClaimed(ctx, t, isResume)
}

// startClaimed spawns the agent process for a task this runner already
// holds the claim for and whose status is in_progress
func (r *Runner) startClaimed(ctx context.Context, t *types.ClassifiedTask, isResume bool) {
	workdir := r.workdirFor(t)
	if workdir == "" {
		r.log.Warn().Str("task_id", t.ID).Str("workdir", t.Workdir).Str("worktree", t.Worktree).
			Msg("no usable working directory, releasing task")
		r.api.UpdateStatus(ctx, t.ID, types.StatusPending, "no usable working directory")
		r.api.Release(ctx, r.cfg.Project, t.ID)
		return
	}

	spec := LaunchSpec{
		TaskID:  t.ID,
		Prompt:  BuildPrompt(t, isResume),
		Workdir: workdir,
		Agent:   r.cfg.Agent,
		Model:   r.cfg.Model,
		DryRun:  r.cfg.DryRun,
	}

	h, err := r.launcher.Launch(ctx, spec)
	if err != nil {
		r.log.Error().Err(err).Str("task_id", t.ID).Msg("agent launch failed, releasing")
		r.api.UpdateStatus(ctx, t.ID, types.StatusPending, "agent launch failed: "+err.Error())
		r.api.Release(ctx, r.cfg.Project, t.ID)
		return
	}

	r.sup.Track(t.ID, h)
	r.st.RunningTasks = append(r.st.RunningTasks, types.RunningTask{
		ID:        t.ID,
		Path:      t.Path,
		Title:     t.Title,
		Priority:  t.Priority,
		PID:       h.PID(),
		StartedAt: time.Now(),
		IsResume:  isResume,
		Workdir:   workdir,
	})
	if err := r.state.Save(r.st); err != nil {
		r.log.Error().Err(err).Msg("state save failed")
	}
	r.log.Info().Str("task_id", t.ID).Int("pid", h.PID()).Bool("resume", isResume).Msg("task started")
}

// drainExits reaps finished children without blocking
func (r *Runner) drainExits(ctx context.Context) {
	for {
		select {
		case exit := <-r.sup.Exits():
			r.finishTask(ctx, exit)
		default:
			return
		}
	}
}

// finishTask records one child exit: success completes the task, any
// failure blocks it with a note; either way the claim is released
func (r *Runner) finishTask(ctx context.Context, exit Exit) {
	if exit.Code == 0 && exit.Err == nil {
		if err := r.api.UpdateStatus(ctx, exit.TaskID, types.StatusCompleted, ""); err != nil {
			r.log.Warn().Err(err).Str("task_id", exit.TaskID).Msg("completion update failed")
		}
		r.st.Stats.Completed++
		r.log.Info().Str("task_id", exit.TaskID).Dur("runtime", exit.Runtime).Msg("task completed")
	} else {
		note := fmt.Sprintf("agent exited with code %d", exit.Code)
		if exit.Err != nil {
			note = "agent failed: " + exit.Err.Error()
		}
		if err := r.api.UpdateStatus(ctx, exit.TaskID, types.StatusBlocked, note); err != nil {
			r.log.Warn().Err(err).Str("task_id", exit.TaskID).Msg("failure update failed")
		}
		r.st.Stats.Failed++
		r.log.Warn().Str("task_id", exit.TaskID).Int("code", exit.Code).Msg("task failed")
	}
	r.st.Stats.TotalRuntime += exit.Runtime.Milliseconds()

	r.api.Release(ctx, r.cfg.Project, exit.TaskID)
	r.removeRunning(exit.TaskID)
	if err := r.state.Save(r.st); err != nil {
		r.log.Error().Err(err).Msg("state save failed")
	}
}

// shutdown stops accepting work, terminates children, and hands their
// tasks back as pending: an operator-induced stop is not a task
// failure
func (r *Runner) shutdown() error {
	r.log.Info().Msg("shutting down")
	r.st.Status = types.RunnerStopping
	r.state.Save(r.st)

	r.sup.TerminateAll()

	// reap whatever arrived during termination, then hand back the rest
	timeout := r.cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	draining := true
	for draining {
		select {
		case exit := <-r.sup.Exits():
			r.removeRunning(exit.TaskID)
			r.api.UpdateStatus(ctx, exit.TaskID, types.StatusPending, "")
			r.api.Release(ctx, r.cfg.Project, exit.TaskID)
		default:
			draining = false
		}
	}
	for _, rt := range r.st.RunningTasks {
		r.api.UpdateStatus(ctx, rt.ID, types.StatusPending, "")
		r.api.Release(ctx, r.cfg.Project, rt.ID)
	}
	r.st.RunningTasks = []types.RunningTask{}

	r.st.Status = types.RunnerStopped
	if err := r.state.Save(r.st); err != nil {
		return err
	}
	r.state.ClearPID()
	r.log.Info().Int("completed", r.st.Stats.Completed).Int("failed", r.st.Stats.Failed).Msg("runner stopped")
	return nil
}

// sleep waits out the remainder of the poll interval, measured from
// the start of the tick so slow iterations do not drift
func (r *Runner) sleep(ctx context.Context) error {
	next := r.lastPoll.Add(r.cfg.PollInterval)
	wait := time.Until(next)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case exit := <-r.sup.Exits():
		// a finished child wakes the loop early
		r.finishTask(ctx, exit)
		return nil
	}
}

// healthy gates the tick on API health, cached briefly
func (r *Runner) healthy(ctx context.Context) bool {
	if time.Since(r.healthOKAt) < healthCacheTTL {
		return true
	}
	h, err := r.api.CheckHealth(ctx)
	if err != nil || h.Status == "unhealthy" {
		return false
	}
	r.healthOKAt = time.Now()
	return true
}

// handleAPIError applies the retry policy: unavailable and transport
// errors wait a poll; a 4xx from our own API is a bug and halts
func (r *Runner) handleAPIError(err error, op string) {
	kind := brainerr.KindOf(err)
	if kind == brainerr.KindBackendUnavailable || kind == brainerr.KindIo {
		r.log.Warn().Err(err).Str("op", op).Msg("api unavailable, will retry")
		return
	}
	r.log.Error().Err(err).Str("op", op).Msg("unexpected api error, halting")
	r.haltErr = err
}

func (r *Runner) workdirFor(t *types.ClassifiedTask) string {
	if t.ResolvedWorkdir != "" {
		return t.ResolvedWorkdir
	}
	if r.cfg.Workdir != "" {
		if info, err := os.Stat(r.cfg.Workdir); err == nil && info.IsDir() {
			abs, err := filepath.Abs(r.cfg.Workdir)
			if err == nil {
				return abs
			}
		}
	}
	return ""
}

func (r *Runner) excluded(t *types.ClassifiedTask) bool {
	for _, pattern := range r.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, t.ID); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, t.Stem()); ok {
			return true
		}
	}
	return false
}

func (r *Runner) alreadyRunning(taskID string) bool {
	for _, rt := range r.st.RunningTasks {
		if rt.ID == taskID {
			return true
		}
	}
	return false
}

func (r *Runner) removeRunning(taskID string) {
	kept := r.st.RunningTasks[:0]
	for _, rt := range r.st.RunningTasks {
		if rt.ID != taskID {
			kept = append(kept, rt)
		}
	}
	r.st.RunningTasks = kept
}
