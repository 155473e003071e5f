// cmd/rigidsim/scenario.go
package main

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/shape"
	"github.com/opd-ai/go-rigid/pkg/validation"
	"github.com/opd-ai/go-rigid/pkg/world"
)

// scenario populates a world; it returns the body the camera follows.
type scenario func(w *world.World, size int) (*body.RigidBody, error)

var scenarios = map[string]scenario{
	"stack":    buildStack,
	"pendulum": buildPendulum,
	"rain":     buildRain,
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addGround(w *world.World) error {
	_, err := w.AddBody(body.New(body.Options{
		Shape:    shape.NewInfinitePlane(mgl64.Vec3{0, 1, 0}, 0),
		Friction: 0.8,
	}))
	return err
}

// buildStack piles size unit spheres on top of each other.
func buildStack(w *world.World, size int) (*body.RigidBody, error) {
	if err := addGround(w); err != nil {
		return nil, err
	}
	var top *body.RigidBody
	for i := 0; i < size; i++ {
		top = body.New(body.Options{
			Shape:    shape.NewSphere(1),
			Position: mgl64.Vec3{0, 1.01 + 2.01*float64(i), 0},
			Friction: 0.5,
		})
		if _, err := w.AddBody(top); err != nil {
			return nil, fmt.Errorf("failed to add sphere %d: %w", i, err)
		}
	}
	return top, nil
}

// buildPendulum hangs a chain of size spheres from a static anchor and gives
// the last link a push.
func buildPendulum(w *world.World, size int) (*body.RigidBody, error) {
	anchor := body.New(body.Options{
		Shape:    shape.NewSphere(0.25),
		Position: mgl64.Vec3{0, 2*float64(size) + 4, 0},
		Static:   true,
	})
	if _, err := w.AddBody(anchor); err != nil {
		return nil, err
	}

	prev := anchor
	for i := 0; i < size; i++ {
		pos := anchor.Position().Sub(mgl64.Vec3{0, 2 * float64(i+1), 0})
		link := body.New(body.Options{
			Shape:          shape.NewSphere(0.5),
			Position:       pos,
			AngularDamping: 0.1,
		})
		if _, err := w.AddBody(link); err != nil {
			return nil, fmt.Errorf("failed to add link %d: %w", i, err)
		}
		pivot := prev.Position().Add(pos).Mul(0.5)
		if _, err := w.AddConstraint(w.NewJoint(prev, link, pivot)); err != nil {
			return nil, fmt.Errorf("failed to join link %d: %w", i, err)
		}
		prev = link
	}
	prev.SetVelocity(mgl64.Vec3{4, 0, 0})
	return prev, nil
}

// buildRain drops a size x size grid of mixed shapes onto a ramp and the
// ground.
func buildRain(w *world.World, size int) (*body.RigidBody, error) {
	if err := addGround(w); err != nil {
		return nil, err
	}

	rampVerts := []mgl64.Vec3{{-12, 0, -12}, {12, 0, -12}, {12, 6, 12}, {-12, 6, 12}}
	rampIdx := []uint32{0, 2, 1, 0, 3, 2}
	if err := validation.ValidateTriangles(rampVerts, rampIdx); err != nil {
		return nil, err
	}
	if _, err := w.AddBody(body.New(body.Options{
		Shape:    shape.NewTriangleMesh(rampVerts, rampIdx),
		Friction: 0.3,
	})); err != nil {
		return nil, fmt.Errorf("failed to add ramp: %w", err)
	}

	cube := []mgl64.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	if err := validation.ValidatePointCloud(cube); err != nil {
		return nil, err
	}
	dumbbell := []shape.SubSphere{
		{Center: mgl64.Vec3{-0.6, 0, 0}, Radius: 0.4},
		{Center: mgl64.Vec3{0.6, 0, 0}, Radius: 0.4},
	}
	centers := []mgl64.Vec3{dumbbell[0].Center, dumbbell[1].Center}
	if err := validation.ValidateSpheres(centers, []float64{dumbbell[0].Radius, dumbbell[1].Radius}); err != nil {
		return nil, err
	}

	var last *body.RigidBody
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			var s shape.Shape
			switch (i + j) % 3 {
			case 0:
				s = shape.NewSphere(0.5)
			case 1:
				s = shape.NewConvexMesh(cube)
			default:
				s = shape.NewMultiSphere(dumbbell)
			}
			pos := mgl64.Vec3{
				float64(i-size/2) * 2.5,
				12 + float64((i*size+j)%5),
				float64(j-size/2) * 2.5,
			}
			last = body.New(body.Options{
				Shape:       s,
				Position:    pos,
				Orientation: mgl64.QuatRotate(0.3*float64(i+j), mgl64.Vec3{1, 1, 0}.Normalize()),
				Friction:    0.5,
				Restitution: 0.2,
			})
			if _, err := w.AddBody(last); err != nil {
				return nil, fmt.Errorf("failed to add body %d,%d: %w", i, j, err)
			}
		}
	}
	return last, nil
}
