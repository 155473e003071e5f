// pkg/event/event_test.go
package event

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opd-ai/go-rigid/pkg/body"
)

func TestNewEventBus_Creation_ReturnsInitializedBus(t *testing.T) {
	bus := NewEventBus()

	if bus == nil {
		t.Fatal("NewEventBus() returned nil")
	}
	if bus.handlers == nil {
		t.Error("handlers map not initialized")
	}
	if bus.nextID != 1 {
		t.Errorf("expected nextID to be 1, got %d", bus.nextID)
	}
}

func TestBaseEvent_GetType_ReturnsCorrectType(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		source    interface{}
	}{
		{"BodyAdded event", BodyAdded, "world"},
		{"Collision event", Collision, 123},
		{"Empty source", StepCompleted, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &BaseEvent{EventType: tt.eventType, Source: tt.source}
			if event.GetType() != tt.eventType {
				t.Errorf("GetType() = %v, want %v", event.GetType(), tt.eventType)
			}
			if event.GetSource() != tt.source {
				t.Errorf("GetSource() = %v, want %v", event.GetSource(), tt.source)
			}
		})
	}
}

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(Collision, func(e Event) { got = append(got, e) })
	bus.Subscribe(BodyAdded, func(e Event) { t.Error("wrong type delivered") })

	a := body.Handle{Index: 1, Generation: 1}
	b := body.Handle{Index: 2, Generation: 1}
	bus.Publish(NewCollisionEvent("world", a, b, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{}, 2, 0.01))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	ce, ok := got[0].(*CollisionEvent)
	if !ok {
		t.Fatalf("expected *CollisionEvent, got %T", got[0])
	}
	if ce.A != a || ce.B != b || ce.Points != 2 {
		t.Errorf("unexpected collision event %+v", ce)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	first := bus.Subscribe(StepCompleted, func(Event) { calls++ })
	second := bus.Subscribe(StepCompleted, func(Event) { calls += 10 })
	if first == second {
		t.Fatal("subscription IDs must be unique")
	}

	if !bus.Unsubscribe(StepCompleted, first) {
		t.Error("Unsubscribe() returned false for a live subscription")
	}
	if bus.Unsubscribe(StepCompleted, first) {
		t.Error("Unsubscribe() returned true twice")
	}

	bus.Publish(NewStepEvent(nil, 1))
	if calls != 10 {
		t.Errorf("expected only the second handler to run, calls = %d", calls)
	}
	if !bus.HasSubscribers(StepCompleted) {
		t.Error("HasSubscribers() = false with a live handler")
	}
	bus.Unsubscribe(StepCompleted, second)
	if bus.HasSubscribers(StepCompleted) {
		t.Error("HasSubscribers() = true after removing every handler")
	}
}

func TestBus_ConcurrentSubscribe(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Subscribe(BodyRemoved, func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	bus.Publish(NewBodyEvent(BodyRemoved, nil, body.Handle{Index: 0, Generation: 1}, 7))
	if count != 20 {
		t.Errorf("expected 20 handler calls, got %d", count)
	}
}
