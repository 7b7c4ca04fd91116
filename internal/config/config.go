// Package config loads runtime configuration from an optional YAML file
// with environment variable overrides on top.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nodeflow/calvinrt/internal/scheduler"
)

// File is the on-disk shape; all fields are optional and anything unset
// falls back to the scheduler defaults.
type File struct {
	Strategy            string  `yaml:"strategy"`
	MaintenanceDelay    float64 `yaml:"maintenance_delay"`
	ReplicationInterval float64 `yaml:"replication_interval"`
	WatchdogDelay       float64 `yaml:"watchdog_delay"`
	FireBudget          float64 `yaml:"fire_budget"`
	RedisAddr           string  `yaml:"redis_addr"`
	PostgresDSN         string  `yaml:"postgres_dsn"`
	DataDir             string  `yaml:"data_dir"`
	DebugAddr           string  `yaml:"debug_addr"`
	TraceMonitor        bool    `yaml:"trace_monitor"`
}

// Runtime is the resolved configuration the binary wires up.
type Runtime struct {
	Strategy     scheduler.Strategy
	Scheduler    scheduler.Config
	RedisAddr    string
	PostgresDSN  string
	DataDir      string
	DebugAddr    string
	TraceMonitor bool
}

// Load reads path (if non-empty and present) then applies env overrides.
// A missing path is not an error: defaults plus env vars are enough to run
// single-node.
func Load(path string) (Runtime, error) {
	var f File
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Runtime{}, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &f); err != nil {
				return Runtime{}, err
			}
		}
	}

	cfg := scheduler.DefaultConfig()
	if f.MaintenanceDelay > 0 {
		cfg.MaintenanceDelay = secondsToDuration(f.MaintenanceDelay)
	}
	if f.ReplicationInterval > 0 {
		cfg.ReplicationInterval = secondsToDuration(f.ReplicationInterval)
	}
	if f.WatchdogDelay > 0 {
		cfg.WatchdogDelay = secondsToDuration(f.WatchdogDelay)
	}
	if f.FireBudget > 0 {
		cfg.FireBudget = secondsToDuration(f.FireBudget)
	}

	strategyName := f.Strategy
	rt := Runtime{
		Scheduler:    cfg,
		RedisAddr:    f.RedisAddr,
		PostgresDSN:  f.PostgresDSN,
		DataDir:      f.DataDir,
		DebugAddr:    f.DebugAddr,
		TraceMonitor: f.TraceMonitor,
	}

	applyEnvOverrides(&rt, &strategyName)

	tag, ok := scheduler.ParseStrategy(strategyName)
	if !ok {
		tag = scheduler.Simple
	}
	rt.Strategy = tag
	return rt, nil
}

// applyEnvOverrides applies env-var precedence: an env var set to a
// non-empty value wins over the file. Numeric values that do not parse are
// ignored, and CALVINRT_TRACE_MONITOR can only switch tracing on (value
// "true"), never off.
func applyEnvOverrides(rt *Runtime, strategyName *string) {
	if v := os.Getenv("SCHEDULER_STRATEGY"); v != "" {
		*strategyName = v
	}
	if v := os.Getenv("SCHEDULER_MAINTENANCE_DELAY_S"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			rt.Scheduler.MaintenanceDelay = secondsToDuration(secs)
		}
	}
	if v := os.Getenv("SCHEDULER_WATCHDOG_DELAY_S"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			rt.Scheduler.WatchdogDelay = secondsToDuration(secs)
		}
	}
	if v := os.Getenv("SCHEDULER_FIRE_BUDGET_S"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			rt.Scheduler.FireBudget = secondsToDuration(secs)
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		rt.RedisAddr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		rt.PostgresDSN = v
	}
	if v := os.Getenv("CALVINRT_DATA_DIR"); v != "" {
		rt.DataDir = v
	}
	if v := os.Getenv("CALVINRT_DEBUG_ADDR"); v != "" {
		rt.DebugAddr = v
	}
	if v := os.Getenv("CALVINRT_TRACE_MONITOR"); v == "true" {
		rt.TraceMonitor = true
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
