// Package runner is the distributed task runner: a cooperative
// scheduler loop per project that polls the brain API, claims ready
// tasks, and supervises external agent processes.
package runner

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// LaunchSpec describes one agent process to start
type LaunchSpec struct {
	TaskID  string
	Prompt  string
	Workdir string
	Agent   string
	Model   string
	DryRun  bool
}

// Handle is a started child process. Wait blocks until exit; the
// supervisor calls it from a goroutine so the loop never does.
type Handle interface {
	PID() int
	Terminate() error
	Kill() error
	Wait() (exitCode int, err error)
}

// Launcher starts agent processes. Tests inject a fake; the real one
// uses os/exec.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}

// ExecLauncher spawns the agent CLI with the task prompt on stdin
type ExecLauncher struct{}

// Launch builds and starts the agent command. The child gets its own
// process group so cancellation signals do not hit the runner itself.
func (ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Handle, error) {
	args := []string{"-p"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if spec.DryRun {
		args = append(args, "--dry-run")
	}

	cmd := exec.Command(spec.Agent, args...)
	cmd.Dir = spec.Workdir
	cmd.Env = os.Environ()
	cmd.Stdin = strings.NewReader(spec.Prompt)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: cmd}, nil
}

type execHandle struct {
	cmd *exec.Cmd
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Terminate() error {
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

func (h *execHandle) Kill() error {
	return h.cmd.Process.Kill()
}

func (h *execHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
