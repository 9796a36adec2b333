// Package world maintains the authoritative state of one game instance:
// the entity map, world properties, the bounded event log, and the turn
// counter. Mutation is guarded by a single per-instance mutex held for the
// duration of an action or NPC update and never across an LLM call.
package world

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/d-andres/AgenticRealm/pkg/events"
)

// How much history the state retains, and how much a snapshot exposes.
const (
	eventLogCap         = 200
	snapshotEventWindow = 10
)

// LogEntry is one retained event-log record.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Turn      int            `json:"turn"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
}

// State is the authoritative world state of one instance.
//
// All exported methods except Lock/Unlock require the caller to hold the
// state lock. Holding it for a whole action keeps compound transitions
// (read entity, check hazards, commit position) atomic with respect to
// concurrent NPC updates applied by the scheduler.
type State struct {
	mu sync.Mutex

	InstanceID string
	Turn       int
	Properties map[string]any

	entities map[string]*Entity
	order    []string // insertion order; gives stable iteration
	log      []LogEntry

	bus *events.Bus // nil for detached (standalone game) states
}

// NewState creates a world with default bounds.
// bus may be nil when the state is not attached to an instance.
func NewState(instanceID string, bus *events.Bus) *State {
	return &State{
		InstanceID: instanceID,
		Properties: map[string]any{
			"world_width":  800.0,
			"world_height": 600.0,
			"created_at":   time.Now().Format(time.RFC3339),
		},
		entities: make(map[string]*Entity),
		bus:      bus,
	}
}

// Lock acquires the per-instance state mutex.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the per-instance state mutex.
func (s *State) Unlock() { s.mu.Unlock() }

// AddEntity inserts an entity and logs entity_added. Re-adding an existing
// id replaces the entity but keeps its position in iteration order.
func (s *State) AddEntity(e *Entity) {
	if _, exists := s.entities[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entities[e.ID] = e
	s.LogEvent("entity_added", map[string]any{"entity_id": e.ID, "type": e.Type})
}

// RemoveEntity deletes an entity. Unknown ids are a silent no-op.
func (s *State) RemoveEntity(id string) {
	if _, ok := s.entities[id]; !ok {
		return
	}
	delete(s.entities, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.LogEvent("entity_removed", map[string]any{"entity_id": id})
}

// Entity returns the entity with the given id, or nil.
func (s *State) Entity(id string) *Entity {
	return s.entities[id]
}

// Entities returns all entities in stable insertion order.
func (s *State) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entities[id])
	}
	return out
}

// EntityCount returns the number of entities in the world.
func (s *State) EntityCount() int { return len(s.entities) }

// UpdateEntity applies a shallow patch: x, y and type are assigned as
// top-level attributes, every other key flows into the properties bag.
// Unknown ids are a silent no-op.
func (s *State) UpdateEntity(id string, patch map[string]any) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	for key, value := range patch {
		switch key {
		case "x":
			if v, ok := toFloat(value); ok {
				e.X = v
			}
		case "y":
			if v, ok := toFloat(value); ok {
				e.Y = v
			}
		case "type":
			if v, ok := value.(string); ok {
				e.Type = v
			}
		default:
			e.Properties[key] = value
		}
	}
	s.LogEvent("entity_updated", map[string]any{"entity_id": id, "updates": patch})
}

// LogEvent appends to the bounded in-memory log and publishes to the event
// bus in the same call. Publication never blocks. World coordinates are
// resolved from the npc_id / target_npc_id referenced in data, else (0,0).
func (s *State) LogEvent(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	entry := LogEntry{
		Timestamp: time.Now(),
		Turn:      s.Turn,
		Type:      eventType,
		Data:      data,
	}
	s.log = append(s.log, entry)
	if len(s.log) > eventLogCap {
		s.log = s.log[len(s.log)-eventLogCap:]
	}

	if s.bus == nil || s.InstanceID == "" {
		return
	}
	x, y := s.eventCoords(data)
	s.bus.Publish(events.GameEvent{
		InstanceID: s.InstanceID,
		EventType:  eventType,
		Data:       data,
		X:          x,
		Y:          y,
		Timestamp:  entry.Timestamp,
	})
}

// eventCoords resolves the world position of an event from the NPC it
// references, falling back to the origin.
func (s *State) eventCoords(data map[string]any) (float64, float64) {
	for _, key := range []string{"npc_id", "target_npc_id"} {
		id, ok := data[key].(string)
		if !ok {
			continue
		}
		if e, ok := s.entities[id]; ok {
			return e.X, e.Y
		}
	}
	return 0, 0
}

// RecentEvents returns a copy of the newest n log entries.
func (s *State) RecentEvents(n int) []LogEntry {
	if n > len(s.log) {
		n = len(s.log)
	}
	out := make([]LogEntry, n)
	copy(out, s.log[len(s.log)-n:])
	return out
}

// Bounds returns the world dimensions.
func (s *State) Bounds() (width, height float64) {
	w := 800.0
	h := 600.0
	if v, ok := toFloat(s.Properties["world_width"]); ok {
		w = v
	}
	if v, ok := toFloat(s.Properties["world_height"]); ok {
		h = v
	}
	return w, h
}

// InBounds reports whether a point lies inside the world rectangle.
func (s *State) InBounds(x, y float64) bool {
	w, h := s.Bounds()
	return x >= 0 && x <= w && y >= 0 && y <= h
}

// Snapshot is the serializable view of a State. It carries only the last
// 10 events, the player-visible window.
type Snapshot struct {
	Turn         int                `json:"turn"`
	Entities     map[string]*Entity `json:"entities"`
	Properties   map[string]any     `json:"properties"`
	RecentEvents []LogEntry         `json:"recent_events"`
}

// Snapshot renders the serializable view. Entities and properties are deep
// copies safe to use outside the state lock.
func (s *State) Snapshot() Snapshot {
	ents := make(map[string]*Entity, len(s.entities))
	for id, e := range s.entities {
		ents[id] = e.clone()
	}
	return Snapshot{
		Turn:         s.Turn,
		Entities:     ents,
		Properties:   deepCopyMap(s.Properties),
		RecentEvents: s.RecentEvents(snapshotEventWindow),
	}
}

// FromSnapshot reconstructs a State from a persisted snapshot. Entities are
// restored in lexicographic id order so iteration order is deterministic
// across restarts.
func FromSnapshot(instanceID string, snap Snapshot, bus *events.Bus) *State {
	s := NewState(instanceID, bus)
	s.Turn = snap.Turn
	if snap.Properties != nil {
		s.Properties = deepCopyMap(snap.Properties)
	}
	ids := make([]string, 0, len(snap.Entities))
	for id := range snap.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e := snap.Entities[id]
		if e.ID == "" {
			e.ID = id
		}
		if e.Properties == nil {
			e.Properties = make(map[string]any)
		}
		s.entities[e.ID] = e.clone()
		s.order = append(s.order, e.ID)
	}
	for _, entry := range snap.RecentEvents {
		s.log = append(s.log, entry)
	}
	return s
}

func distance(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}

// FormatPosition renders coordinates for diagnostics.
func FormatPosition(x, y float64) string {
	return fmt.Sprintf("(%.0f, %.0f)", x, y)
}
