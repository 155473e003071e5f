// pkg/event/event.go
package event

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
)

// Type represents the type of event
type Type string

// Simulation event types
const (
	BodyAdded         Type = "body_added"
	BodyRemoved       Type = "body_removed"
	BodyOrphaned      Type = "body_orphaned"
	Collision         Type = "collision"
	ConstraintAdded   Type = "constraint_added"
	ConstraintRemoved Type = "constraint_removed"
	StepCompleted     Type = "step_completed"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// SubscriptionID identifies a handler registration.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus manages event subscriptions and dispatching. Handlers run on the
// publishing goroutine, which for the world is the stepping goroutine.
type Bus struct {
	handlers map[Type][]subscription
	nextID   SubscriptionID
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscription),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a registration. It reports whether id was found.
func (b *Bus) Unsubscribe(eventType Type, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// HasSubscribers reports whether any handler listens for eventType, so
// publishers can skip building events nobody reads.
func (b *Bus) HasSubscribers(eventType Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) > 0
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// BodyEvent reports a body entering or leaving the world.
type BodyEvent struct {
	BaseEvent
	Body   body.Handle
	Entity uint64
}

// NewBodyEvent creates a new body event
func NewBodyEvent(eventType Type, source interface{}, h body.Handle, entity uint64) *BodyEvent {
	return &BodyEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Body:   h,
		Entity: entity,
	}
}

// CollisionEvent summarises the contacts between two bodies in one step.
// Normal points from A toward B.
type CollisionEvent struct {
	BaseEvent
	A, B     body.Handle
	Normal   mgl64.Vec3
	Position mgl64.Vec3
	Points   int
	MaxDepth float64
}

// NewCollisionEvent creates a new collision event
func NewCollisionEvent(source interface{}, a, b body.Handle, normal, pos mgl64.Vec3, points int, depth float64) *CollisionEvent {
	return &CollisionEvent{
		BaseEvent: BaseEvent{
			EventType: Collision,
			Source:    source,
		},
		A:        a,
		B:        b,
		Normal:   normal,
		Position: pos,
		Points:   points,
		MaxDepth: depth,
	}
}

// ConstraintEvent reports a joint being added or removed.
type ConstraintEvent struct {
	BaseEvent
	ID uint64
}

// NewConstraintEvent creates a new constraint event
func NewConstraintEvent(eventType Type, source interface{}, id uint64) *ConstraintEvent {
	return &ConstraintEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		ID: id,
	}
}

// StepEvent carries the statistics of one fixed step.
type StepEvent struct {
	BaseEvent
	Step        uint64
	Bodies      int
	Contacts    int
	Constraints int
	Batches     int
	Duration    time.Duration
}

// NewStepEvent creates a new step event
func NewStepEvent(source interface{}, step uint64) *StepEvent {
	return &StepEvent{
		BaseEvent: BaseEvent{
			EventType: StepCompleted,
			Source:    source,
		},
		Step: step,
	}
}
