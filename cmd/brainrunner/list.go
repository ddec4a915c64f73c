package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/CLIAIBRAIN/internal/apiclient"
	"github.com/CLIAIBRAIN/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List all tasks with their classifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjection(cmd, args, func(t types.ClassifiedTask) bool { return true })
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready <project>",
	Short: "List tasks ready to execute, in scheduling order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjection(cmd, args, func(t types.ClassifiedTask) bool {
			return t.Classification.Schedulable()
		})
	},
}

var waitingCmd = &cobra.Command{
	Use:   "waiting <project>",
	Short: "List tasks waiting on incomplete dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjection(cmd, args, func(t types.ClassifiedTask) bool {
			return t.Classification.CountsAsWaiting()
		})
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked <project>",
	Short: "List blocked tasks with the reason",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjection(cmd, args, func(t types.ClassifiedTask) bool {
			return t.Classification.CountsAsBlocked()
		})
	},
}

func runProjection(cmd *cobra.Command, args []string, keep func(types.ClassifiedTask) bool) error {
	project, err := projectArg(args)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd, project)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
	defer cancel()

	api := apiclient.New(cfg.APIBase, cfg.APITimeout)
	result, err := api.ClassifiedTasks(ctx, project)
	if err != nil {
		return err
	}

	var tasks []types.ClassifiedTask
	for _, t := range result.Tasks {
		if keep(t) {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) == 0 {
		fmt.Println("No matching tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCLASS\tPRIORITY\tTITLE\tDETAIL")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Classification, t.Priority, t.Title, taskDetail(t))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d tasks: %d ready, %d waiting, %d blocked\n",
		result.Stats.Total, result.Stats.Ready, result.Stats.Waiting, result.Stats.Blocked)
	if len(result.Cycles) > 0 {
		fmt.Printf("Dependency cycles detected: %d\n", len(result.Cycles))
	}
	return nil
}

// taskDetail renders the classification-specific column
func taskDetail(t types.ClassifiedTask) string {
	switch {
	case t.Classification.CountsAsWaiting():
		return "waiting on " + strings.Join(t.WaitingOn, ", ")
	case t.Classification.CountsAsBlocked():
		detail := "blocked by " + strings.Join(t.BlockedBy, ", ")
		if t.BlockedByReason != "" {
			detail += " (" + string(t.BlockedByReason) + ")"
		}
		return detail
	case len(t.UnresolvedDeps) > 0:
		return "unresolved: " + strings.Join(t.UnresolvedDeps, ", ")
	default:
		return ""
	}
}
