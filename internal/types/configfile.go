package types

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadServerConfig reads brain.yaml and applies BRAIN_* environment
// overrides on top of the defaults. An absent file is not an error;
// flags are applied by the caller afterwards.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	envString("BRAIN_HOST", &cfg.Host)
	envInt("BRAIN_PORT", &cfg.Port)
	envString("BRAIN_DIR", &cfg.BrainDir)
	envString("BRAIN_STATE_DIR", &cfg.StateDir)
	envString("BRAIN_ZK_BINARY", &cfg.ZKBinary)
	envString("BRAIN_LOG_LEVEL", &cfg.LogLevel)
	envString("BRAIN_LOG_FORMAT", &cfg.LogFormat)
	return cfg, nil
}

// LoadRunnerConfig reads runner settings from brain.yaml's `runner`
// section plus BRAIN_* overrides
func LoadRunnerConfig(path string) (RunnerConfig, error) {
	cfg := DefaultRunnerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			var file struct {
				Runner RunnerConfig `yaml:"runner"`
			}
			file.Runner = cfg
			if err := yaml.Unmarshal(data, &file); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg = file.Runner
		}
	}

	envString("BRAIN_API", &cfg.APIBase)
	envString("BRAIN_AGENT", &cfg.Agent)
	envString("BRAIN_MODEL", &cfg.Model)
	envString("BRAIN_STATE_DIR", &cfg.StateDir)
	envInt("BRAIN_MAX_PARALLEL", &cfg.MaxParallel)
	envDuration("BRAIN_POLL_INTERVAL", &cfg.PollInterval)
	return cfg, nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
