// Package events provides the non-blocking pub/sub queue that decouples the
// player action path from the scheduler.
//
// Flow: a player action mutates world state and logs an event; the log call
// publishes here and returns immediately. On the next tick the scheduler
// drains the instance's queue and dispatches NPC reactions. Queues are keyed
// by instance so instances stay fully isolated from each other.
package events

import (
	"sync"
	"time"
)

// GameEvent is a discrete occurrence inside one world instance.
type GameEvent struct {
	InstanceID string         `json:"instance_id"`
	EventType  string         `json:"event_type"`
	Data       map[string]any `json:"data"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Bus holds one FIFO queue per instance.
//
// Publish may be called from any action-path goroutine; DrainInstance and
// ClearInstance are called by the scheduler. Each operation is individually
// atomic, so no event is observed twice and none is lost before a drain.
// Queues are unbounded; backpressure is applied downstream by the scheduler
// dropping AI calls, never by dropping events.
type Bus struct {
	mu     sync.Mutex
	queues map[string][]GameEvent
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{queues: make(map[string][]GameEvent)}
}

// Publish enqueues an event. O(1), never blocks, never fails.
func (b *Bus) Publish(ev GameEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	b.queues[ev.InstanceID] = append(b.queues[ev.InstanceID], ev)
	b.mu.Unlock()
}

// DrainInstance atomically returns all pending events for an instance and
// empties its queue. Returns nil when nothing is pending.
func (b *Bus) DrainInstance(instanceID string) []GameEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queues[instanceID]
	if len(q) == 0 {
		return nil
	}
	delete(b.queues, instanceID)
	return q
}

// ClearInstance discards the queue of a stopped or deleted instance.
func (b *Bus) ClearInstance(instanceID string) {
	b.mu.Lock()
	delete(b.queues, instanceID)
	b.mu.Unlock()
}

// PendingCount reports how many events are waiting for an instance.
func (b *Bus) PendingCount(instanceID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[instanceID])
}

// AllPending is a diagnostic snapshot of instance → queue depth.
func (b *Bus) AllPending() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.queues))
	for id, q := range b.queues {
		if len(q) > 0 {
			out[id] = len(q)
		}
	}
	return out
}
