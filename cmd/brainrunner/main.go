package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/types"
)

// errUsage marks operator mistakes that should exit 2 instead of 1
var errUsage = errors.New("usage error")

var (
	flagConfig   string
	flagAPI      string
	flagParallel int
	flagPoll     time.Duration
	flagWorkdir  string
	flagAgent    string
	flagModel    string
	flagDryRun   bool
	flagExclude  []string
	flagNoResume bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "brainrunner",
	Short: "Brain task runner - executes ready tasks with external agents",
	Long: `brainrunner polls the brain API for ready tasks, claims them, and
supervises external agent processes that execute them. One scheduler
loop runs per project; pass "all" to run every project.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "brain.yaml", "configuration file")
	pf.StringVar(&flagAPI, "api", "", "brain API base URL")
	pf.IntVar(&flagParallel, "parallel", 0, "max concurrent agent processes")
	pf.DurationVar(&flagPoll, "poll", 0, "poll interval")
	pf.StringVar(&flagWorkdir, "workdir", "", "fallback working directory for tasks without one")
	pf.StringVar(&flagAgent, "agent", "", "agent command to execute tasks")
	pf.StringVar(&flagModel, "model", "", "model passed to the agent")
	pf.BoolVar(&flagDryRun, "dry-run", false, "pass --dry-run to the agent")
	pf.StringSliceVar(&flagExclude, "exclude", nil, "task id/stem patterns to skip")
	pf.BoolVar(&flagNoResume, "no-resume", false, "revert interrupted tasks to pending instead of resuming")
	pf.BoolVar(&flagVerbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runOneCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(waitingCmd)
	rootCmd.AddCommand(blockedCmd)
	rootCmd.AddCommand(logsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// buildConfig layers defaults, brain.yaml, BRAIN_* env, and flags
func buildConfig(cmd *cobra.Command, project string) (types.RunnerConfig, error) {
	godotenv.Load()

	cfg, err := types.LoadRunnerConfig(flagConfig)
	if err != nil {
		return cfg, err
	}
	cfg.Project = project

	f := cmd.Flags()
	if f.Changed("api") {
		cfg.APIBase = flagAPI
	}
	if f.Changed("parallel") {
		cfg.MaxParallel = flagParallel
	}
	if f.Changed("poll") {
		cfg.PollInterval = flagPoll
	}
	if f.Changed("workdir") {
		cfg.Workdir = flagWorkdir
	}
	if f.Changed("agent") {
		cfg.Agent = flagAgent
	}
	if f.Changed("model") {
		cfg.Model = flagModel
	}
	if f.Changed("dry-run") {
		cfg.DryRun = flagDryRun
	}
	if f.Changed("exclude") {
		cfg.Exclude = flagExclude
	}
	if flagNoResume {
		cfg.Resume = false
	}
	cfg.Verbose = flagVerbose

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("determine home directory: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".brain")
	}
	if cfg.LogFile == "" && project != "" {
		cfg.LogFile = filepath.Join(cfg.StateDir, "runner-"+project+".log")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, nil
}

// initLogging sets up console output plus the ndjson log file sink
func initLogging(cfg types.RunnerConfig) (func(), error) {
	level := logging.InfoLevel
	if cfg.Verbose {
		level = logging.DebugLevel
	}

	lc := logging.Config{Level: level}
	var closer func()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		lc.ExtraSinks = append(lc.ExtraSinks, f)
		closer = func() { f.Close() }
	}
	logging.Init(lc)
	if closer == nil {
		closer = func() {}
	}
	return closer, nil
}

// projectArg validates the single positional project argument
func projectArg(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: exactly one project argument is required", errUsage)
	}
	return args[0], nil
}
