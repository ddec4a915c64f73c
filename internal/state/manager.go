// Package state persists runner state to disk for crash recovery.
// Three files per project: the full snapshot, a bare PID file, and a
// running-tasks file, so a partial write of one cannot corrupt the
// others. All writes are temp-file-then-rename atomic; corrupt or
// truncated reads report absent rather than failing.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/types"
)

// Manager owns the state files for one project under dir
type Manager struct {
	dir     string
	project string
	log     zerolog.Logger
}

// NewManager creates a state manager for a project, creating the state
// directory if needed
func NewManager(dir, project string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Manager{
		dir:     dir,
		project: project,
		log:     logging.WithComponent("state").With().Str("project", project).Logger(),
	}, nil
}

func (m *Manager) statePath() string {
	return filepath.Join(m.dir, "runner-"+m.project+".json")
}

func (m *Manager) pidPath() string {
	return filepath.Join(m.dir, "runner-"+m.project+".pid")
}

func (m *Manager) runningPath() string {
	return filepath.Join(m.dir, "running-"+m.project+".json")
}

// Save persists the full snapshot plus the PID and running-tasks files
func (m *Manager) Save(s *types.RunnerState) error {
	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runner state: %w", err)
	}
	if err := writeAtomic(m.statePath(), data); err != nil {
		return err
	}
	if err := writeAtomic(m.pidPath(), []byte(strconv.Itoa(s.PID))); err != nil {
		return err
	}
	return m.SaveRunning(s.RunningTasks)
}

// SaveRunning persists only the running-tasks snapshot
func (m *Manager) SaveRunning(tasks []types.RunningTask) error {
	if tasks == nil {
		tasks = []types.RunningTask{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal running tasks: %w", err)
	}
	return writeAtomic(m.runningPath(), data)
}

// Load reads the snapshot; nil without error when absent or corrupt
func (m *Manager) Load() (*types.RunnerState, error) {
	data, err := os.ReadFile(m.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runner state: %w", err)
	}
	var s types.RunnerState
	if err := json.Unmarshal(data, &s); err != nil {
		m.log.Warn().Err(err).Msg("runner state file corrupt, treating as absent")
		return nil, nil
	}
	return &s, nil
}

// LoadRunning reads the running-tasks snapshot; empty when absent or
// corrupt
func (m *Manager) LoadRunning() ([]types.RunningTask, error) {
	data, err := os.ReadFile(m.runningPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read running tasks: %w", err)
	}
	var tasks []types.RunningTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		m.log.Warn().Err(err).Msg("running tasks file corrupt, treating as absent")
		return nil, nil
	}
	return tasks, nil
}

// ReadPID returns the recorded runner PID, 0 when absent or unreadable
func (m *Manager) ReadPID() int {
	return readPIDFile(m.pidPath())
}

// PriorRunnerLive reports whether the PID on disk belongs to a live
// process
func (m *Manager) PriorRunnerLive() bool {
	pid := m.ReadPID()
	return pid > 0 && PIDLive(pid)
}

// ClearPID removes the PID file; used after detecting a dead prior
// runner
func (m *Manager) ClearPID() error {
	err := os.Remove(m.pidPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear pid file: %w", err)
	}
	return nil
}

// Clear removes all three state files
func (m *Manager) Clear() error {
	for _, p := range []string{m.statePath(), m.pidPath(), m.runningPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear state file %s: %w", p, err)
		}
	}
	return nil
}

// FindAllRunnerStates loads every runner snapshot under dir, keyed by
// project
func FindAllRunnerStates(dir string) (map[string]*types.RunnerState, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*types.RunnerState{}, nil
		}
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	out := make(map[string]*types.RunnerState)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "runner-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		project := strings.TrimSuffix(strings.TrimPrefix(name, "runner-"), ".json")

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var s types.RunnerState
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		out[project] = &s
	}
	return out, nil
}

// CleanupStaleStates removes state files whose recorded PID is no
// longer live; returns the projects cleaned
func CleanupStaleStates(dir string) ([]string, error) {
	states, err := FindAllRunnerStates(dir)
	if err != nil {
		return nil, err
	}

	var cleaned []string
	for project, s := range states {
		pid := s.PID
		if filePID := readPIDFile(filepath.Join(dir, "runner-"+project+".pid")); filePID > 0 {
			pid = filePID
		}
		if pid > 0 && PIDLive(pid) {
			continue
		}
		m := &Manager{dir: dir, project: project, log: logging.WithComponent("state")}
		if err := m.Clear(); err != nil {
			return cleaned, err
		}
		cleaned = append(cleaned, project)
	}
	return cleaned, nil
}

// writeAtomic writes data to a sibling temp file and renames it over
// path
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}
