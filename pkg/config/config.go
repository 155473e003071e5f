// pkg/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/go-rigid/pkg/validation"
)

// Config contains the configuration of a simulation world
type Config struct {
	World          WorldConfig          `json:"world" yaml:"world"`
	Solver         SolverConfig         `json:"solver" yaml:"solver"`
	Broadphase     BroadphaseConfig     `json:"broadphase" yaml:"broadphase"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker" yaml:"circuitBreaker"`
	Health         HealthConfig         `json:"health" yaml:"health"`
	LogLevel       string               `json:"logLevel" yaml:"logLevel"`
}

// WorldConfig contains stepping configuration
type WorldConfig struct {
	Gravity           [3]float64 `json:"gravity" yaml:"gravity"`
	FixedTimestep     float64    `json:"fixedTimestep" yaml:"fixedTimestep"`
	MaxStepsPerUpdate int        `json:"maxStepsPerUpdate" yaml:"maxStepsPerUpdate"`
	// Workers is the collision worker count; 0 uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// GravityVec returns the gravity as a vector.
func (w WorldConfig) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3(w.Gravity)
}

// SolverConfig contains constraint solver tuning
type SolverConfig struct {
	Iterations           int     `json:"iterations" yaml:"iterations"`
	Backend              string  `json:"backend" yaml:"backend"`
	ParallelMinBatch     int     `json:"parallelMinBatch" yaml:"parallelMinBatch"`
	UndoPenetrationCoeff float64 `json:"undoPenetrationCoeff" yaml:"undoPenetrationCoeff"`
	StaticFrictionScale  float64 `json:"staticFrictionScale" yaml:"staticFrictionScale"`
	KineticFrictionScale float64 `json:"kineticFrictionScale" yaml:"kineticFrictionScale"`
	JointDriftCoeff      float64 `json:"jointDriftCoeff" yaml:"jointDriftCoeff"`
}

// BroadphaseConfig contains region grid configuration
type BroadphaseConfig struct {
	RegionSize      float64 `json:"regionSize" yaml:"regionSize"`
	WorldHalfExtent float64 `json:"worldHalfExtent" yaml:"worldHalfExtent"`
}

// CircuitBreakerConfig configures the breaker around the solver backend
type CircuitBreakerConfig struct {
	MaxRequests         uint32   `json:"maxRequests" yaml:"maxRequests"`
	Interval            Duration `json:"interval" yaml:"interval"`
	Timeout             Duration `json:"timeout" yaml:"timeout"`
	MaxConsecutiveFails uint32   `json:"maxConsecutiveFails" yaml:"maxConsecutiveFails"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// ListenAddr serves the probes when non-empty.
	ListenAddr string `json:"listenAddr" yaml:"listenAddr"`
	MaxMemoryMB int64 `json:"maxMemoryMB" yaml:"maxMemoryMB"`
	// MaxStepDuration is the wall-clock budget of one fixed step.
	MaxStepDuration Duration `json:"maxStepDuration" yaml:"maxStepDuration"`
	// ProbesPerMinute limits probe requests per client.
	ProbesPerMinute int `json:"probesPerMinute" yaml:"probesPerMinute"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads a configuration from a JSON or YAML file. Fields missing
// from the file keep their defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// SaveConfig saves a configuration to a file, as YAML when the extension
// says so and as JSON otherwise
func SaveConfig(config *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(config)
	} else {
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns the default simulation configuration
func DefaultConfig() *Config {
	return &Config{
		World: WorldConfig{
			Gravity:           [3]float64{0, -9.81, 0},
			FixedTimestep:     1.0 / 60.0,
			MaxStepsPerUpdate: 4,
		},
		Solver: SolverConfig{
			Iterations:           10,
			Backend:              "cpu",
			ParallelMinBatch:     64,
			UndoPenetrationCoeff: 0.2,
			StaticFrictionScale:  1,
			KineticFrictionScale: 1,
			JointDriftCoeff:      0.2,
		},
		Broadphase: BroadphaseConfig{
			RegionSize:      16,
			WorldHalfExtent: 1024,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:         1,
			Interval:            Duration(time.Minute),
			Timeout:             Duration(5 * time.Second),
			MaxConsecutiveFails: 3,
		},
		Health: HealthConfig{
			MaxMemoryMB:     1024,
			MaxStepDuration: Duration(50 * time.Millisecond),
			ProbesPerMinute: 120,
		},
		LogLevel: "INFO",
	}
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	w := c.World
	if err := validation.ValidateVec3("world.gravity", w.GravityVec()); err != nil {
		return err
	}
	if err := validation.ValidateRange("world.fixedTimestep", w.FixedTimestep, validation.MinTimestep, validation.MaxTimestep); err != nil {
		return err
	}
	if err := validation.ValidateIntRange("world.maxStepsPerUpdate", w.MaxStepsPerUpdate, 1, 1000); err != nil {
		return err
	}
	if err := validation.ValidateIntRange("world.workers", w.Workers, 0, validation.MaxWorkers); err != nil {
		return err
	}

	s := c.Solver
	if err := validation.ValidateIntRange("solver.iterations", s.Iterations, 1, validation.MaxIterations); err != nil {
		return err
	}
	if err := validation.ValidateBackendName(s.Backend); err != nil {
		return err
	}
	if err := validation.ValidateIntRange("solver.parallelMinBatch", s.ParallelMinBatch, 1, 1<<20); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"solver.undoPenetrationCoeff", s.UndoPenetrationCoeff},
		{"solver.staticFrictionScale", s.StaticFrictionScale},
		{"solver.kineticFrictionScale", s.KineticFrictionScale},
		{"solver.jointDriftCoeff", s.JointDriftCoeff},
	} {
		if err := validation.ValidateRange(f.name, f.v, 0, 1); err != nil {
			return err
		}
	}

	b := c.Broadphase
	if err := validation.ValidatePositive("broadphase.regionSize", b.RegionSize); err != nil {
		return err
	}
	if err := validation.ValidatePositive("broadphase.worldHalfExtent", b.WorldHalfExtent); err != nil {
		return err
	}
	if b.WorldHalfExtent < b.RegionSize {
		return fmt.Errorf("broadphase.worldHalfExtent %v smaller than regionSize %v", b.WorldHalfExtent, b.RegionSize)
	}

	cb := c.CircuitBreaker
	if cb.MaxConsecutiveFails == 0 {
		return fmt.Errorf("circuitBreaker.maxConsecutiveFails must be positive")
	}
	if cb.Timeout <= 0 {
		return fmt.Errorf("circuitBreaker.timeout must be positive, got %s", cb.Timeout)
	}

	h := c.Health
	if err := validation.ValidateListenAddr(h.ListenAddr); err != nil {
		return err
	}
	if h.MaxMemoryMB <= 0 {
		return fmt.Errorf("health.maxMemoryMB must be positive, got %d", h.MaxMemoryMB)
	}
	if h.ProbesPerMinute < 0 {
		return fmt.Errorf("health.probesPerMinute must not be negative, got %d", h.ProbesPerMinute)
	}

	return validation.ValidateLogLevel(c.LogLevel)
}
