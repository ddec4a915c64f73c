package runner

import (
	"strings"

	"github.com/CLIAIBRAIN/internal/types"
)

// BuildPrompt composes the stdin prompt an agent process receives: the
// original user request first, then the task body, then the contract
// the runner expects the agent to honor.
func BuildPrompt(t *types.ClassifiedTask, isResume bool) string {
	var b strings.Builder

	b.WriteString("# Task: ")
	b.WriteString(t.Title)
	b.WriteString("\n\n")

	if isResume {
		b.WriteString("This task was interrupted and is being resumed. ")
		b.WriteString("Check existing progress in the working directory before redoing work.\n\n")
	}

	if t.UserOriginalRequest != "" {
		b.WriteString("## Original Request\n\n")
		b.WriteString(strings.TrimSpace(t.UserOriginalRequest))
		b.WriteString("\n\n")
	}

	if body := strings.TrimSpace(t.Body); body != "" {
		b.WriteString("## Task Details\n\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	b.WriteString("## Instructions\n\n")
	b.WriteString("Complete the task described above. Task id: ")
	b.WriteString(t.ID)
	if t.GitBranch != "" {
		b.WriteString("\nWork on branch: ")
		b.WriteString(t.GitBranch)
	}
	b.WriteString("\nExit 0 only when the task is fully done.\n")

	return b.String()
}
