package runner

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/logging"
)

// termGrace is how long a cancelled child gets between SIGTERM and
// SIGKILL
const termGrace = 5 * time.Second

// Exit reports one finished child. Code is the process exit code, -1
// when the process died to a signal or could not be reaped.
type Exit struct {
	TaskID  string
	PID     int
	Code    int
	Err     error
	Runtime time.Duration
}

type child struct {
	handle    Handle
	startedAt time.Time
}

// Supervisor tracks spawned agent processes. Exits are posted to a
// buffered channel the scheduler loop drains each tick, so reaping
// never blocks the loop.
type Supervisor struct {
	mu       sync.Mutex
	children map[string]*child
	exits    chan Exit
	log      zerolog.Logger
}

// NewSupervisor creates a supervisor with room for maxParallel pending
// exits
func NewSupervisor(maxParallel int) *Supervisor {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Supervisor{
		children: make(map[string]*child),
		exits:    make(chan Exit, maxParallel*2),
		log:      logging.WithComponent("supervisor"),
	}
}

// Track registers a started child and begins waiting on it
func (s *Supervisor) Track(taskID string, h Handle) {
	now := time.Now()
	s.mu.Lock()
	s.children[taskID] = &child{handle: h, startedAt: now}
	s.mu.Unlock()

	go func() {
		code, err := h.Wait()
		s.mu.Lock()
		delete(s.children, taskID)
		s.mu.Unlock()
		s.exits <- Exit{
			TaskID:  taskID,
			PID:     h.PID(),
			Code:    code,
			Err:     err,
			Runtime: time.Since(now),
		}
	}()
}

// Exits is the channel finished children are reported on
func (s *Supervisor) Exits() <-chan Exit {
	return s.exits
}

// Running returns the number of live children
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// Cancel terminates one child: SIGTERM, then SIGKILL after the grace
// period. It returns immediately; the exit arrives on the channel.
func (s *Supervisor) Cancel(taskID string) bool {
	s.mu.Lock()
	c, ok := s.children[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.log.Info().Str("task_id", taskID).Int("pid", c.handle.PID()).Msg("cancelling child")
	c.handle.Terminate()
	go func() {
		time.Sleep(termGrace)
		s.mu.Lock()
		_, alive := s.children[taskID]
		s.mu.Unlock()
		if alive {
			c.handle.Kill()
		}
	}()
	return true
}

// TerminateAll sends SIGTERM to every child, waits up to the grace
// period for them to exit, and SIGKILLs survivors. Used on shutdown,
// where blocking is acceptable.
func (s *Supervisor) TerminateAll() {
	s.mu.Lock()
	handles := make(map[string]Handle, len(s.children))
	for id, c := range s.children {
		handles[id] = c.handle
	}
	s.mu.Unlock()

	if len(handles) == 0 {
		return
	}

	for id, h := range handles {
		s.log.Info().Str("task_id", id).Int("pid", h.PID()).Msg("terminating child")
		h.Terminate()
	}

	deadline := time.After(termGrace)
	for {
		s.mu.Lock()
		remaining := len(s.children)
		s.mu.Unlock()
		if remaining == 0 {
			return
		}
		select {
		case <-deadline:
			s.mu.Lock()
			for id, c := range s.children {
				s.log.Warn().Str("task_id", id).Msg("killing unresponsive child")
				c.handle.Kill()
			}
			s.mu.Unlock()
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}
