// pkg/world/system.go
package world

import (
	"github.com/EngoEngine/ecs"

	"github.com/opd-ai/go-rigid/pkg/body"
)

// SystemPriority runs physics before systems with the default priority 0.
const SystemPriority = 100

// System adapts a World to ecs.World. Update feeds frame time to the fixed
// step loop; removing an entity from the ecs world removes its body.
type System struct {
	World *World
}

// NewSystem wraps w.
func NewSystem(w *World) *System {
	return &System{World: w}
}

// Add inserts b; its embedded BasicEntity identifies it to the ecs world.
func (s *System) Add(b *body.RigidBody) (body.Handle, error) {
	return s.World.AddBody(b)
}

// Update implements ecs.System.
func (s *System) Update(dt float32) {
	s.World.Update(float64(dt))
}

// Remove implements ecs.System.
func (s *System) Remove(e ecs.BasicEntity) {
	s.World.RemoveEntity(e)
}

// Priority implements ecs.Prioritizer.
func (s *System) Priority() int {
	return SystemPriority
}
