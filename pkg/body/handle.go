// pkg/body/handle.go
package body

import "fmt"

// Handle names a body stored in an Arena. A handle whose slot has been reused
// no longer resolves.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsValid reports whether the handle was ever issued.
func (h Handle) IsValid() bool {
	return h.Generation != 0
}

// String formats the handle as index:generation.
func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

// Less orders handles by slot index.
func (h Handle) Less(o Handle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}
	return h.Generation < o.Generation
}

type slot struct {
	body       *RigidBody
	generation uint32
}

// Arena owns bodies behind generational handles. It is not safe for
// concurrent mutation.
type Arena struct {
	slots []slot
	free  []uint32
	count int
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Insert stores b and assigns its handle.
func (a *Arena) Insert(b *RigidBody) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.generation++
	s.body = b
	h := Handle{Index: idx, Generation: s.generation}
	b.handle = h
	a.count++
	return h
}

// Get resolves a handle.
func (a *Arena) Get(h Handle) (*RigidBody, bool) {
	if !h.IsValid() || int(h.Index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.Index]
	if s.generation != h.Generation || s.body == nil {
		return nil, false
	}
	return s.body, true
}

// Remove frees the slot of h and returns the body it held.
func (a *Arena) Remove(h Handle) (*RigidBody, bool) {
	b, ok := a.Get(h)
	if !ok {
		return nil, false
	}
	a.slots[h.Index].body = nil
	a.free = append(a.free, h.Index)
	a.count--
	return b, true
}

// Len returns the number of live bodies.
func (a *Arena) Len() int {
	return a.count
}

// Each calls fn for every live body in slot order.
func (a *Arena) Each(fn func(*RigidBody)) {
	for _, s := range a.slots {
		if s.body != nil {
			fn(s.body)
		}
	}
}

// Bodies returns the live bodies in slot order.
func (a *Arena) Bodies() []*RigidBody {
	out := make([]*RigidBody, 0, a.count)
	a.Each(func(b *RigidBody) { out = append(out, b) })
	return out
}
