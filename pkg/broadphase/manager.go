// pkg/broadphase/manager.go
package broadphase

import (
	"errors"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
	"github.com/opd-ai/go-rigid/pkg/geom"
	"github.com/opd-ai/go-rigid/pkg/shape"
)

var (
	// ErrNoShape is returned when adding a body without geometry.
	ErrNoShape = errors.New("body has no shape")
	// ErrOutOfBounds is returned when a body lies entirely outside the world.
	ErrOutOfBounds = errors.New("body is outside the world bounds")
)

// unboundedKey names the region that holds shapes with infinite bounds.
var unboundedKey = body.RegionKey{math.MaxInt32, math.MaxInt32, math.MaxInt32}

// OrphanFunc is called when a body loses its last region.
type OrphanFunc func(b *body.RigidBody)

// Options configures a Manager.
type Options struct {
	// RegionSize is the edge length of a grid cell.
	RegionSize float64
	// WorldHalfExtent bounds the grid to [-WorldHalfExtent, WorldHalfExtent]
	// on every axis.
	WorldHalfExtent float64
	// OnOrphan is notified when a body drops out of every region.
	OnOrphan OrphanFunc
}

// Relevant is the result of a neighbour query, grouped by shape type. It is
// reusable scratch: Reset it between queries.
type Relevant struct {
	ByType [shape.NumTypes][]*body.RigidBody
	seen   map[body.Handle]struct{}
}

// NewRelevant allocates query scratch.
func NewRelevant() *Relevant {
	return &Relevant{seen: make(map[body.Handle]struct{})}
}

// Reset clears the result, keeping capacity.
func (r *Relevant) Reset() {
	for t := range r.ByType {
		r.ByType[t] = r.ByType[t][:0]
	}
	clear(r.seen)
}

// Len returns the total number of bodies found.
func (r *Relevant) Len() int {
	n := 0
	for t := range r.ByType {
		n += len(r.ByType[t])
	}
	return n
}

// Each calls fn for every body, grouped by shape type.
func (r *Relevant) Each(fn func(*body.RigidBody)) {
	for t := range r.ByType {
		for _, b := range r.ByType[t] {
			fn(b)
		}
	}
}

type cellRange struct {
	lo, hi [3]int32
}

// Manager owns the uniform grid of regions. Regions are created on demand
// and dropped when they empty. All mutating methods must be called from the
// stepping goroutine; GetRelevantObjects may run concurrently with itself.
type Manager struct {
	size      float64
	half      float64
	cells     int32
	regions   map[body.RegionKey]*Region
	unbounded *Region
	onOrphan  OrphanFunc
}

// NewManager creates an empty grid.
func NewManager(opts Options) *Manager {
	if opts.RegionSize <= 0 {
		opts.RegionSize = 16
	}
	if opts.WorldHalfExtent <= 0 {
		opts.WorldHalfExtent = 1024
	}
	cells := int32(math.Ceil(opts.WorldHalfExtent / opts.RegionSize))
	return &Manager{
		size:      opts.RegionSize,
		half:      float64(cells) * opts.RegionSize,
		cells:     cells,
		regions:   make(map[body.RegionKey]*Region),
		unbounded: newRegion(unboundedKey, geom.InfiniteAABB(), true),
		onOrphan:  opts.OnOrphan,
	}
}

// SetOrphanFunc replaces the orphan callback.
func (m *Manager) SetOrphanFunc(fn OrphanFunc) {
	m.onOrphan = fn
}

// Bounds returns the space covered by the grid.
func (m *Manager) Bounds() geom.AABB {
	return geom.AABB{
		Min: mgl64.Vec3{-m.half, -m.half, -m.half},
		Max: mgl64.Vec3{m.half, m.half, m.half},
	}
}

// RegionSize returns the grid cell edge length.
func (m *Manager) RegionSize() float64 {
	return m.size
}

// RegionCount returns the number of live bounded regions.
func (m *Manager) RegionCount() int {
	return len(m.regions)
}

// Region returns the region at key, if it exists.
func (m *Manager) Region(key body.RegionKey) (*Region, bool) {
	if key == unboundedKey {
		return m.unbounded, true
	}
	r, ok := m.regions[key]
	return r, ok
}

// Regions returns the live bounded regions ordered by key.
func (m *Manager) Regions() []*Region {
	out := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].key, out[j].key) })
	return out
}

func keyLess(a, b body.RegionKey) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (m *Manager) cell(x float64) int32 {
	c := int32(math.Floor(x / m.size))
	if c < -m.cells {
		return -m.cells
	}
	if c > m.cells-1 {
		return m.cells - 1
	}
	return c
}

// cellsFor returns the grid cells covering box, or false when box misses the
// world.
func (m *Manager) cellsFor(box geom.AABB) (cellRange, bool) {
	if box.IsEmpty() || !box.Intersects(m.Bounds()) {
		return cellRange{}, false
	}
	var cr cellRange
	for i := 0; i < 3; i++ {
		cr.lo[i] = m.cell(box.Min[i])
		cr.hi[i] = m.cell(box.Max[i])
	}
	return cr, true
}

func (cr cellRange) contains(k body.RegionKey) bool {
	for i := 0; i < 3; i++ {
		if k[i] < cr.lo[i] || k[i] > cr.hi[i] {
			return false
		}
	}
	return true
}

func (cr cellRange) count() int {
	n := 1
	for i := 0; i < 3; i++ {
		n *= int(cr.hi[i]-cr.lo[i]) + 1
	}
	return n
}

func (cr cellRange) each(fn func(body.RegionKey)) {
	for x := cr.lo[0]; x <= cr.hi[0]; x++ {
		for y := cr.lo[1]; y <= cr.hi[1]; y++ {
			for z := cr.lo[2]; z <= cr.hi[2]; z++ {
				fn(body.RegionKey{x, y, z})
			}
		}
	}
}

func (m *Manager) regionAt(k body.RegionKey) *Region {
	r, ok := m.regions[k]
	if !ok {
		lo := mgl64.Vec3{float64(k[0]), float64(k[1]), float64(k[2])}.Mul(m.size)
		r = newRegion(k, geom.AABB{Min: lo, Max: lo.Add(mgl64.Vec3{m.size, m.size, m.size})}, false)
		m.regions[k] = r
	}
	return r
}

// Add files b into every region its bounds touch. Bodies with infinite
// bounds go to the unbounded region.
func (m *Manager) Add(b *body.RigidBody) error {
	if b.Shape() == nil {
		return ErrNoShape
	}
	box := b.AABB()
	if box.IsInfinite() {
		m.unbounded.AddRigidBody(b)
		return nil
	}
	cr, ok := m.cellsFor(box)
	if !ok {
		return ErrOutOfBounds
	}
	cr.each(func(k body.RegionKey) { m.regionAt(k).AddRigidBody(b) })
	return nil
}

// Remove disowns b from every region and fires the orphan callback.
func (m *Manager) Remove(b *body.RigidBody) {
	for _, k := range b.Regions() {
		m.drop(b, k)
	}
}

// drop removes b from the region at k, discarding the region when it empties
// and notifying the orphan callback if b has no regions left.
func (m *Manager) drop(b *body.RigidBody, k body.RegionKey) {
	r, ok := m.Region(k)
	if !ok {
		b.RemoveRegion(k)
		return
	}
	last := r.RemoveRigidBody(b)
	if r.Len() == 0 && !r.unbounded {
		delete(m.regions, k)
	}
	if last && m.onOrphan != nil {
		m.onOrphan(b)
	}
}

// Rebucket re-files b after it moved. A body that left the world loses every
// region and is orphaned.
func (m *Manager) Rebucket(b *body.RigidBody) {
	if b.Shape() == nil || b.HasRegion(unboundedKey) {
		return
	}
	cr, ok := m.cellsFor(b.AABB())
	if ok && cr.count() == b.RegionCount() {
		same := true
		for _, k := range b.Regions() {
			if !cr.contains(k) {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	if ok {
		cr.each(func(k body.RegionKey) { m.regionAt(k).AddRigidBody(b) })
	}
	for _, k := range b.Regions() {
		if !ok || !cr.contains(k) {
			m.drop(b, k)
		}
	}
}

// SetActive changes the activity flag of b and moves it between buckets.
func (m *Manager) SetActive(b *body.RigidBody, active bool) {
	b.SetActive(active)
	for _, k := range b.Regions() {
		if r, ok := m.Region(k); ok {
			r.refile(b)
		}
	}
}

// GetRelevantObjects fills out with every body whose bounds overlap box, plus
// every unbounded body. Each type group is sorted by handle.
func (m *Manager) GetRelevantObjects(box geom.AABB, out *Relevant) {
	out.Reset()
	m.unbounded.collect(box, out)
	if cr, ok := m.cellsFor(box); ok {
		if cr.count() > len(m.regions) {
			// long rays and large boxes: walk the live regions, not the cells
			for k, r := range m.regions {
				if cr.contains(k) {
					r.collect(box, out)
				}
			}
		} else {
			cr.each(func(k body.RegionKey) {
				if r, ok := m.regions[k]; ok {
					r.collect(box, out)
				}
			})
		}
	}
	for t := range out.ByType {
		group := out.ByType[t]
		sort.Slice(group, func(i, j int) bool { return group[i].Handle().Less(group[j].Handle()) })
	}
}
