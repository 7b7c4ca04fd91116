package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/calvinrt/internal/scheduler"
)

func TestLoadDefaults(t *testing.T) {
	rt, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, scheduler.Simple, rt.Strategy)
	assert.Equal(t, 300*time.Second, rt.Scheduler.MaintenanceDelay)
	assert.Equal(t, 2*time.Second, rt.Scheduler.ReplicationInterval)
	assert.Equal(t, 60*time.Second, rt.Scheduler.WatchdogDelay)
	assert.Equal(t, 20*time.Millisecond, rt.Scheduler.FireBudget)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	rt, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, scheduler.Simple, rt.Strategy)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calvinrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strategy: round_robin
maintenance_delay: 120
watchdog_delay: 30
fire_budget: 0.005
redis_addr: "localhost:6379"
debug_addr: ":8099"
trace_monitor: true
`), 0o644))

	rt, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, scheduler.RoundRobin, rt.Strategy)
	assert.Equal(t, 120*time.Second, rt.Scheduler.MaintenanceDelay)
	assert.Equal(t, 30*time.Second, rt.Scheduler.WatchdogDelay)
	assert.Equal(t, 5*time.Millisecond, rt.Scheduler.FireBudget)
	assert.Equal(t, "localhost:6379", rt.RedisAddr)
	assert.Equal(t, ":8099", rt.DebugAddr)
	assert.True(t, rt.TraceMonitor)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calvinrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: simple\nmaintenance_delay: 120\n"), 0o644))

	t.Setenv("SCHEDULER_STRATEGY", "non_preemptive")
	t.Setenv("SCHEDULER_MAINTENANCE_DELAY_S", "45")
	t.Setenv("REDIS_ADDR", "redis:6379")

	rt, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, scheduler.NonPreemptive, rt.Strategy)
	assert.Equal(t, 45*time.Second, rt.Scheduler.MaintenanceDelay)
	assert.Equal(t, "redis:6379", rt.RedisAddr)
}

func TestUnknownStrategyFallsBackToSimple(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calvinrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: fair\n"), 0o644))

	rt, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, scheduler.Simple, rt.Strategy)
}

func TestMalformedYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calvinrt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: [unclosed\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
