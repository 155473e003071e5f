// Package validation checks configuration values and raw geometry before they
// reach the simulation kernel.
package validation

import (
	"fmt"
	"math"
	"net"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Geometry and tuning limits
const (
	MaxPointCloud    = 4096
	MaxMeshTriangles = 1 << 20
	MaxSpheres       = 256
	MaxIterations    = 1000
	MaxWorkers       = 1024
	MinTimestep      = 1e-5
	MaxTimestep      = 1.0
)

// Backends lists the solver backend names the kernel understands.
var Backends = []string{"cpu", "parallel"}

// ValidateFinite rejects NaN and infinities.
func ValidateFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be finite, got %v", name, v)
	}
	return nil
}

// ValidatePositive requires a finite value greater than zero.
func ValidatePositive(name string, v float64) error {
	if err := ValidateFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, v)
	}
	return nil
}

// ValidateRange requires min <= v <= max.
func ValidateRange(name string, v, min, max float64) error {
	if err := ValidateFinite(name, v); err != nil {
		return err
	}
	if v < min || v > max {
		return fmt.Errorf("%s out of range: %v (want %v..%v)", name, v, min, max)
	}
	return nil
}

// ValidateIntRange requires min <= v <= max.
func ValidateIntRange(name string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s out of range: %d (want %d..%d)", name, v, min, max)
	}
	return nil
}

// ValidateVec3 requires every component to be finite.
func ValidateVec3(name string, v mgl64.Vec3) error {
	for i, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%s[%d] must be finite, got %v", name, i, c)
		}
	}
	return nil
}

// ValidatePointCloud checks a convex mesh point cloud: at least four finite
// points, at most MaxPointCloud, not all coincident.
func ValidatePointCloud(points []mgl64.Vec3) error {
	if len(points) < 4 {
		return fmt.Errorf("point cloud needs at least 4 points, got %d", len(points))
	}
	if len(points) > MaxPointCloud {
		return fmt.Errorf("point cloud too large: %d points (max %d)", len(points), MaxPointCloud)
	}
	spread := 0.0
	for i, p := range points {
		if err := ValidateVec3(fmt.Sprintf("point %d", i), p); err != nil {
			return err
		}
		spread = math.Max(spread, p.Sub(points[0]).Len())
	}
	if spread < 1e-9 {
		return fmt.Errorf("point cloud is degenerate: all points coincide")
	}
	return nil
}

// ValidateTriangles checks a triangle mesh: index count a multiple of three,
// every index in range, finite vertices.
func ValidateTriangles(vertices []mgl64.Vec3, indices []uint32) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	if len(indices)/3 > MaxMeshTriangles {
		return fmt.Errorf("mesh too large: %d triangles (max %d)", len(indices)/3, MaxMeshTriangles)
	}
	for i, v := range vertices {
		if err := ValidateVec3(fmt.Sprintf("vertex %d", i), v); err != nil {
			return err
		}
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return fmt.Errorf("index %d references vertex %d of %d", i, idx, len(vertices))
		}
	}
	return nil
}

// ValidateSpheres checks the parts of a multi-sphere.
func ValidateSpheres(centers []mgl64.Vec3, radii []float64) error {
	if len(centers) != len(radii) {
		return fmt.Errorf("got %d centers and %d radii", len(centers), len(radii))
	}
	if len(centers) == 0 || len(centers) > MaxSpheres {
		return fmt.Errorf("sphere count %d out of range (1..%d)", len(centers), MaxSpheres)
	}
	for i := range centers {
		if err := ValidateVec3(fmt.Sprintf("center %d", i), centers[i]); err != nil {
			return err
		}
		if err := ValidatePositive(fmt.Sprintf("radius %d", i), radii[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBackendName accepts the names in Backends, case-insensitively.
func ValidateBackendName(name string) error {
	for _, b := range Backends {
		if strings.EqualFold(name, b) {
			return nil
		}
	}
	return fmt.Errorf("unknown solver backend %q (want one of %s)", name, strings.Join(Backends, ", "))
}

// ValidateLogLevel accepts an empty level or one of DEBUG, INFO, WARN,
// WARNING and ERROR.
func ValidateLogLevel(level string) error {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}

// ValidateListenAddr accepts an empty address (disabled) or host:port.
func ValidateListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return nil
}
