package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CLIAIBRAIN/internal/state"
	"github.com/CLIAIBRAIN/internal/types"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop <project>",
	Short: "Signal a running scheduler loop to shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectArg(args)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(cmd, project)
		if err != nil {
			return err
		}

		mgr, err := state.NewManager(cfg.StateDir, project)
		if err != nil {
			return err
		}
		pid := mgr.ReadPID()
		if pid == 0 || !state.PIDLive(pid) {
			return fmt.Errorf("no runner is running for project %s", project)
		}

		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return fmt.Errorf("signal runner pid %d: %w", pid, err)
		}
		fmt.Printf("Sent SIGTERM to runner %d, waiting for shutdown...\n", pid)

		deadline := time.Now().Add(stopWait)
		for time.Now().Before(deadline) {
			if !state.PIDLive(pid) {
				fmt.Println("Runner stopped.")
				return nil
			}
			time.Sleep(200 * time.Millisecond)
		}
		return fmt.Errorf("runner %d still alive after %s; agents may be finishing", pid, stopWait)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <project|all>",
	Short: "Show runner state for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectArg(args)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(cmd, project)
		if err != nil {
			return err
		}

		if project == "all" {
			states, err := state.FindAllRunnerStates(cfg.StateDir)
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Println("No runner state found.")
				return nil
			}
			for _, st := range states {
				printRunnerState(st)
			}
			return nil
		}

		mgr, err := state.NewManager(cfg.StateDir, project)
		if err != nil {
			return err
		}
		st, err := mgr.Load()
		if err != nil {
			return err
		}
		if st == nil {
			fmt.Printf("No runner state for project %s.\n", project)
			return nil
		}
		printRunnerState(st)
		return nil
	},
}

func printRunnerState(st *types.RunnerState) {
	live := state.PIDLive(st.PID)
	status := string(st.Status)
	if !live && st.Status != types.RunnerStopped {
		status += " (stale: process dead)"
	}

	fmt.Printf("Project:   %s\n", st.Project)
	fmt.Printf("Runner:    %s\n", st.RunnerID)
	fmt.Printf("Status:    %s\n", status)
	fmt.Printf("PID:       %d (live=%v)\n", st.PID, live)
	fmt.Printf("Started:   %s\n", st.StartedAt.Format(time.RFC3339))
	fmt.Printf("Updated:   %s\n", st.UpdatedAt.Format(time.RFC3339))
	fmt.Printf("Completed: %d  Failed: %d\n", st.Stats.Completed, st.Stats.Failed)
	if len(st.RunningTasks) > 0 {
		fmt.Printf("Running:\n")
		for _, rt := range st.RunningTasks {
			fmt.Printf("  %s  pid=%d  since=%s  %s\n",
				rt.ID, rt.PID, rt.StartedAt.Format(time.RFC3339), rt.Title)
		}
	}
	fmt.Println()
}

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs <project>",
	Short: "Print the tail of a project's runner log",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectArg(args)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(cmd, project)
		if err != nil {
			return err
		}

		f, err := os.Open(cfg.LogFile)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("no log file for project %s at %s", project, cfg.LogFile)
			}
			return err
		}
		defer f.Close()

		return tailLines(f, os.Stdout, logsLines)
	},
}

// tailLines writes the last n lines of r to w. The whole file is read;
// runner logs rotate per project and stay small.
func tailLines(r io.Reader, w io.Writer, n int) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		if line != "" {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 30*time.Second, "how long to wait for the runner to exit")
	logsCmd.Flags().IntVar(&logsLines, "lines", 50, "number of trailing lines to print")
}
