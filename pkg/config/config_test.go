package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	assert.Equal(t, mgl64.Vec3{0, -9.81, 0}, config.World.GravityVec())
	assert.InDelta(t, 1.0/60.0, config.World.FixedTimestep, 1e-12)
	assert.Equal(t, 10, config.Solver.Iterations)
	assert.Equal(t, "cpu", config.Solver.Backend)
	assert.Equal(t, 5*time.Second, config.CircuitBreaker.Timeout.Std())
}

func TestSaveAndLoadConfig(t *testing.T) {
	for _, name := range []string{"world.json", "world.yaml", "world.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			config := DefaultConfig()
			config.World.Gravity = [3]float64{0, -1.62, 0}
			config.Solver.Backend = "parallel"
			config.CircuitBreaker.Interval = Duration(90 * time.Second)
			config.Health.ListenAddr = ":8081"

			require.NoError(t, SaveConfig(config, path))
			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, config, loaded)
		})
	}
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json", "partial.json", `{"solver": {"iterations": 25}, "circuitBreaker": {"timeout": "2s"}}`},
		{"yaml", "partial.yaml", "solver:\n  iterations: 25\ncircuitBreaker:\n  timeout: 2s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			config, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, 25, config.Solver.Iterations)
			assert.Equal(t, 2*time.Second, config.CircuitBreaker.Timeout.Std())
			assert.Equal(t, DefaultConfig().Broadphase, config.Broadphase)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		return path
	}

	tests := []struct {
		name        string
		path        string
		errContains string
	}{
		{"missing file", filepath.Join(dir, "nope.json"), "failed to read config file"},
		{"bad json", write("bad.json", "{"), "failed to parse config file"},
		{"bad duration", write("dur.yaml", "circuitBreaker:\n  interval: soon\n"), "invalid duration"},
		{"invalid value", write("zero.json", `{"solver": {"iterations": 0}}`), "solver.iterations out of range"},
		{"unknown backend", write("gpu.yaml", "solver:\n  backend: gpu\n"), "unknown solver backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"timestep too small", func(c *Config) { c.World.FixedTimestep = 0 }, "world.fixedTimestep"},
		{"negative workers", func(c *Config) { c.World.Workers = -1 }, "world.workers"},
		{"coefficient above one", func(c *Config) { c.Solver.UndoPenetrationCoeff = 1.5 }, "undoPenetrationCoeff"},
		{"world smaller than region", func(c *Config) { c.Broadphase.WorldHalfExtent = 8 }, "smaller than regionSize"},
		{"breaker never trips", func(c *Config) { c.CircuitBreaker.MaxConsecutiveFails = 0 }, "maxConsecutiveFails"},
		{"bad listen address", func(c *Config) { c.Health.ListenAddr = "nowhere" }, "invalid listen address"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestSaveConfig_InvalidPath(t *testing.T) {
	err := SaveConfig(DefaultConfig(), filepath.Join(t.TempDir(), "missing", "world.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to write config file") {
		t.Errorf("expected write error, got %v", err)
	}
}
