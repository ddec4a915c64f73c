package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CLIAIBRAIN/internal/apiclient"
	"github.com/CLIAIBRAIN/internal/runner"
)

var startCmd = &cobra.Command{
	Use:   "start <project|all>",
	Short: "Start the scheduler loop for a project",
	Long: `Start polls the brain API and executes ready tasks until
interrupted. Pass "all" to run one scheduler loop per project, sharing
a single API client.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectArg(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if project == "all" {
			return startAll(ctx, cmd)
		}

		cfg, err := buildConfig(cmd, project)
		if err != nil {
			return err
		}
		closeLog, err := initLogging(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		api := apiclient.New(cfg.APIBase, cfg.APITimeout)
		r, err := runner.New(cfg, api, nil)
		if err != nil {
			return err
		}
		return r.Run(ctx)
	},
}

// startAll runs one scheduler loop per project over a shared client
func startAll(ctx context.Context, cmd *cobra.Command) error {
	base, err := buildConfig(cmd, "all")
	if err != nil {
		return err
	}
	closeLog, err := initLogging(base)
	if err != nil {
		return err
	}
	defer closeLog()

	api := apiclient.New(base.APIBase, base.APITimeout)
	projects, err := api.Projects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("no projects with tasks")
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(projects))
	for _, project := range projects {
		cfg := base
		cfg.Project = project
		cfg.LogFile = ""

		r, err := runner.New(cfg, api, nil)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(r *runner.Runner, project string) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				errs <- fmt.Errorf("project %s: %w", project, err)
			}
		}(r, project)
	}
	wg.Wait()
	close(errs)
	return <-errs
}

var runOneCmd = &cobra.Command{
	Use:   "run-one <project>",
	Short: "Claim and execute the single top ready task, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := projectArg(args)
		if err != nil {
			return err
		}
		cfg, err := buildConfig(cmd, project)
		if err != nil {
			return err
		}
		closeLog, err := initLogging(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		api := apiclient.New(cfg.APIBase, cfg.APITimeout)
		r, err := runner.New(cfg, api, nil)
		if err != nil {
			return err
		}
		if err := r.RunOne(ctx); err != nil {
			return err
		}
		if st := r.State(); st != nil && st.Stats.Completed == 1 {
			fmt.Println("Task completed.")
		}
		return nil
	},
}
