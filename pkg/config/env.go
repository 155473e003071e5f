// pkg/config/env.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opd-ai/go-rigid/pkg/logging"
)

// Environment variables read by ApplyEnvironmentOverrides
const (
	EnvGravity              = "RIGID_GRAVITY"
	EnvFixedTimestep        = "RIGID_FIXED_TIMESTEP"
	EnvMaxStepsPerUpdate    = "RIGID_MAX_STEPS_PER_UPDATE"
	EnvWorkers              = "RIGID_WORKERS"
	EnvSolverIterations     = "RIGID_SOLVER_ITERATIONS"
	EnvSolverBackend        = "RIGID_SOLVER_BACKEND"
	EnvUndoPenetration      = "RIGID_UNDO_PENETRATION_COEFF"
	EnvRegionSize           = "RIGID_REGION_SIZE"
	EnvWorldHalfExtent      = "RIGID_WORLD_HALF_EXTENT"
	EnvCBMaxRequests        = "RIGID_CIRCUIT_BREAKER_MAX_REQUESTS"
	EnvCBInterval           = "RIGID_CIRCUIT_BREAKER_INTERVAL"
	EnvCBTimeout            = "RIGID_CIRCUIT_BREAKER_TIMEOUT"
	EnvCBMaxConsecutiveFail = "RIGID_CIRCUIT_BREAKER_MAX_CONSECUTIVE_FAILS"
	EnvHealthAddr           = "RIGID_HEALTH_ADDR"
	EnvMaxMemoryMB          = "RIGID_MAX_MEMORY_MB"
	EnvMaxStepDuration      = "RIGID_MAX_STEP_DURATION"
	EnvLogLevel             = logging.LevelEnvVar
)

// LoadConfigFromEnv returns the default configuration with environment
// overrides applied and validated.
func LoadConfigFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := ApplyEnvironmentOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}
	return config, nil
}

// ApplyEnvironmentOverrides overwrites the fields whose RIGID_* variable is
// set. Unset and empty variables leave the field untouched.
func ApplyEnvironmentOverrides(config *Config) error {
	o := overrider{}

	if v, ok := lookup(EnvGravity); ok {
		g, err := parseVec3(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGravity, err)
		}
		config.World.Gravity = g
	}
	o.float(EnvFixedTimestep, &config.World.FixedTimestep)
	o.int(EnvMaxStepsPerUpdate, &config.World.MaxStepsPerUpdate)
	o.int(EnvWorkers, &config.World.Workers)

	o.int(EnvSolverIterations, &config.Solver.Iterations)
	if v, ok := lookup(EnvSolverBackend); ok {
		config.Solver.Backend = strings.ToLower(v)
	}
	o.float(EnvUndoPenetration, &config.Solver.UndoPenetrationCoeff)

	o.float(EnvRegionSize, &config.Broadphase.RegionSize)
	o.float(EnvWorldHalfExtent, &config.Broadphase.WorldHalfExtent)

	o.uint32(EnvCBMaxRequests, &config.CircuitBreaker.MaxRequests)
	o.duration(EnvCBInterval, &config.CircuitBreaker.Interval)
	o.duration(EnvCBTimeout, &config.CircuitBreaker.Timeout)
	o.uint32(EnvCBMaxConsecutiveFail, &config.CircuitBreaker.MaxConsecutiveFails)

	if v, ok := lookup(EnvHealthAddr); ok {
		config.Health.ListenAddr = v
	}
	o.int64(EnvMaxMemoryMB, &config.Health.MaxMemoryMB)
	o.duration(EnvMaxStepDuration, &config.Health.MaxStepDuration)

	if v, ok := lookup(EnvLogLevel); ok {
		config.LogLevel = strings.ToUpper(v)
	}

	return o.err
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// overrider keeps the first parse error so the call sites stay flat.
type overrider struct {
	err error
}

func (o *overrider) fail(key, value string, err error) {
	if o.err == nil {
		o.err = fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
}

func (o *overrider) float(key string, dst *float64) {
	if v, ok := lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			o.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (o *overrider) int(key string, dst *int) {
	if v, ok := lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			o.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (o *overrider) int64(key string, dst *int64) {
	if v, ok := lookup(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			o.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (o *overrider) uint32(key string, dst *uint32) {
	if v, ok := lookup(key); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			o.fail(key, v, err)
			return
		}
		*dst = uint32(n)
	}
}

func (o *overrider) duration(key string, dst *Duration) {
	if v, ok := lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			o.fail(key, v, err)
			return
		}
		*dst = Duration(d)
	}
}

// parseVec3 reads "x,y,z".
func parseVec3(s string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}
