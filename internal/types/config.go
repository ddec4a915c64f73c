package types

import (
	"fmt"
	"time"
)

// ServerConfig configures the brain API server, loaded from brain.yaml
// with flag and BRAIN_* env overrides
type ServerConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	BrainDir  string `yaml:"brain_dir" json:"brain_dir"`
	StateDir  string `yaml:"state_dir" json:"state_dir"`
	ZKBinary  string `yaml:"zk_binary" json:"zk_binary"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// DefaultServerConfig returns the server defaults before overrides
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:      "127.0.0.1",
		Port:      4765,
		ZKBinary:  "zk",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Validate checks required server settings
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.BrainDir == "" {
		return fmt.Errorf("brain_dir is required")
	}
	return nil
}

// RunnerConfig configures one scheduler loop instance
type RunnerConfig struct {
	APIBase      string        `yaml:"api_base" json:"api_base"`
	Project      string        `yaml:"project" json:"project"`
	MaxParallel  int           `yaml:"max_parallel" json:"max_parallel"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	APITimeout   time.Duration `yaml:"api_timeout" json:"api_timeout"`
	Agent        string        `yaml:"agent" json:"agent"`
	Model        string        `yaml:"model" json:"model"`
	Workdir      string        `yaml:"workdir" json:"workdir"`
	StateDir     string        `yaml:"state_dir" json:"state_dir"`
	LogFile      string        `yaml:"log_file" json:"log_file"`
	DryRun       bool          `yaml:"dry_run" json:"dry_run"`
	Resume       bool          `yaml:"resume" json:"resume"`
	Exclude      []string      `yaml:"exclude" json:"exclude"`
	Verbose      bool          `yaml:"verbose" json:"verbose"`
}

// DefaultRunnerConfig returns the runner defaults before overrides
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		APIBase:      "http://127.0.0.1:4765",
		MaxParallel:  2,
		PollInterval: 30 * time.Second,
		APITimeout:   30 * time.Second,
		Agent:        "claude",
		Resume:       true,
	}
}

// Validate checks runner settings that would otherwise fail mid-loop
func (c *RunnerConfig) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project is required")
	}
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s")
	}
	if c.Agent == "" {
		return fmt.Errorf("agent command is required")
	}
	return nil
}
