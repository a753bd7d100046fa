package memory

import (
	"context"
	"math"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, cfg.MemoryLimitBytes)
	assert.Equal(t, 0.7, cfg.HighWaterMark)
	assert.Equal(t, 0.85, cfg.CriticalWaterMark)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval)
}

func TestMonitorPausesAndResumes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1000
	m := NewMonitor(cfg)
	t.Cleanup(m.Stop)

	m.observe(900)
	require.True(t, m.IsPaused())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.WaitIfPaused(ctx), "cancelled context should abandon the wait")

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused(context.Background()) }()

	// Between the water marks nothing changes.
	m.observe(800)
	assert.True(t, m.IsPaused())

	m.observe(100)
	assert.False(t, m.IsPaused())

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not released after memory recovered")
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 10
	m := NewMonitor(cfg)
	m.observe(10)

	m.Stop()
	m.Stop()
	assert.False(t, m.WaitIfPaused(context.Background()))
}

func TestNilMonitorNeverBlocks(t *testing.T) {
	var m *Monitor
	assert.True(t, m.WaitIfPaused(context.Background()))
}

func TestConfigureFromEnvNone(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	assert.False(t, result.Configured)
	assert.Equal(t, "none", result.Source)
}

func TestConfigureFromEnvContainerLimit(t *testing.T) {
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	require.True(t, result.Configured)
	assert.Equal(t, "MEMORY_LIMIT", result.Source)
	assert.Equal(t, int64(1073741824), result.ContainerLimit)
	assert.Equal(t, int64(536870912), result.GoMemLimit)
	assert.Equal(t, int64(536870912), debug.SetMemoryLimit(-1))
}

func TestConfigureFromEnvBadRatioUsesDefault(t *testing.T) {
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "3")

	result := ConfigureFromEnv()
	assert.Equal(t, DefaultMemoryRatio, result.Ratio)
	assert.Equal(t, int64(850000000), result.GoMemLimit)
}

func TestEnsureMinimum(t *testing.T) {
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	debug.SetMemoryLimit(64 << 20)
	limit, raised := EnsureMinimum(MinimumConversionLimit)
	assert.Equal(t, MinimumConversionLimit, limit)
	assert.True(t, raised)
	assert.Equal(t, MinimumConversionLimit, debug.SetMemoryLimit(-1))

	debug.SetMemoryLimit(math.MaxInt64)
	limit, raised = EnsureMinimum(MinimumConversionLimit)
	assert.Equal(t, int64(math.MaxInt64), limit)
	assert.False(t, raised)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "256.0 MiB", formatBytes(256<<20))
}
