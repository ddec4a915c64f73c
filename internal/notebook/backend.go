package notebook

import (
	"context"
	"os/exec"

	"github.com/CLIAIBRAIN/internal/types"
)

// Filters narrows a notebook list query. Match, link, related and orphan
// filters need the rich backend's index; the rest work on bare files.
type Filters struct {
	Type     types.EntryType
	Tag      string
	Match    string
	LinkTo   string
	LinkedBy string
	Related  string
	Orphan   bool
	Limit    int
	Project  string
	Global   bool
}

// NeedsIndex reports whether the query requires the rich backend
func (f Filters) NeedsIndex() bool {
	return f.Match != "" || f.LinkTo != "" || f.LinkedBy != "" || f.Related != "" || f.Orphan
}

// Backend lists notebook documents matching a filter set
type Backend interface {
	List(ctx context.Context, f Filters) ([]Document, error)
	Available(ctx context.Context) bool
	Name() string
}

// CommandRunner executes one external command and returns its stdout.
// Tests inject a fake; the real one shells out.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string, dir string) ([]byte, error)
}

// ExecRunner is the os/exec-backed CommandRunner
type ExecRunner struct{}

// Run executes the command with the given working directory
func (ExecRunner) Run(ctx context.Context, name string, args []string, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}
