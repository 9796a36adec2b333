package scenario

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d-andres/AgenticRealm/pkg/events"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// Instance status values. An instance admits players only while active.
const (
	StatusGenerating = "generating"
	StatusActive     = "active"
	StatusStopped    = "stopped"
)

// Instance is one running world created from a template. The world state
// carries its own lock; the instance mutex guards status and the player
// list only.
type Instance struct {
	InstanceID string
	ScenarioID string
	Template   *Template
	State      *world.State
	CreatedAt  time.Time

	mu      sync.Mutex
	status  string
	players []string
}

// NewInstance creates an instance in the generating state and seeds the
// world with the template's bounds, rules and static layout.
func NewInstance(t *Template, bus *events.Bus) *Instance {
	inst := &Instance{
		InstanceID: uuid.NewString(),
		ScenarioID: t.ScenarioID,
		Template:   t,
		CreatedAt:  time.Now(),
		status:     StatusGenerating,
	}
	inst.State = world.NewState(inst.InstanceID, bus)

	st := inst.State
	st.Lock()
	defer st.Unlock()
	st.Properties["world_width"] = t.WorldWidth
	st.Properties["world_height"] = t.WorldHeight
	st.Properties["max_turns"] = t.MaxTurns
	st.Properties["allowed_actions"] = toAnySlice(t.AllowedActions)
	st.Properties["starting_position"] = []any{t.StartingPosition[0], t.StartingPosition[1]}
	st.Properties["scenario_name"] = t.Name

	for _, h := range t.Hazards {
		st.AddEntity(world.NewEntity(h.ID, world.TypeHazard, h.X, h.Y, map[string]any{
			"damage": h.Damage,
			"radius": h.Radius,
		}))
	}
	if t.Exit != nil {
		st.AddEntity(world.NewEntity("exit", world.TypeExit, t.Exit.X, t.Exit.Y, map[string]any{
			"radius": t.Exit.Radius,
		}))
	}
	return inst
}

// Status returns the current lifecycle status.
func (i *Instance) Status() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// SetStatus transitions the lifecycle status.
func (i *Instance) SetStatus(status string) {
	i.mu.Lock()
	i.status = status
	i.mu.Unlock()
}

// Players returns a copy of the joined player ids in join order.
func (i *Instance) Players() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.players))
	copy(out, i.players)
	return out
}

// HasPlayer reports whether the agent has joined.
func (i *Instance) HasPlayer(agentID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, p := range i.players {
		if p == agentID {
			return true
		}
	}
	return false
}

// AddPlayer places the agent entity at the template's starting position.
// Joining twice is a no-op. An instance restored without its template has
// no starting position to place the player at, so the join is refused.
func (i *Instance) AddPlayer(agentID string) {
	if i.Template == nil {
		slog.Warn("Rejecting join, instance has no template",
			"instance_id", i.InstanceID, "scenario_id", i.ScenarioID)
		return
	}
	i.mu.Lock()
	for _, p := range i.players {
		if p == agentID {
			i.mu.Unlock()
			return
		}
	}
	i.players = append(i.players, agentID)
	i.mu.Unlock()

	st := i.State
	st.Lock()
	defer st.Unlock()
	if st.Entity(agentID) != nil {
		return
	}
	st.AddEntity(world.NewEntity(agentID, world.TypeAgent,
		i.Template.StartingPosition[0], i.Template.StartingPosition[1],
		map[string]any{
			"health":    100.0,
			"score":     0.0,
			"gold":      i.Template.StartingGold,
			"inventory": []any{},
		}))
}

// Record is the persisted form of an instance.
type Record struct {
	InstanceID string         `json:"instance_id"`
	ScenarioID string         `json:"scenario_id"`
	State      world.Snapshot `json:"state"`
	Players    []string       `json:"players"`
	CreatedAt  time.Time      `json:"created_at"`
	Active     bool           `json:"active"`
}

// ToRecord renders the persistable view. Takes the state lock.
func (i *Instance) ToRecord() Record {
	i.State.Lock()
	snap := i.State.Snapshot()
	i.State.Unlock()
	return Record{
		InstanceID: i.InstanceID,
		ScenarioID: i.ScenarioID,
		State:      snap,
		Players:    i.Players(),
		CreatedAt:  i.CreatedAt,
		Active:     i.Status() != StatusStopped,
	}
}

// FromRecord reconstructs an instance from a persisted record. Restored
// instances come back active; generation never survives a restart. A record
// whose scenario id is no longer in the catalog restores with a nil
// Template and cannot be joined.
func FromRecord(rec Record, bus *events.Bus) *Instance {
	t, ok := GetTemplate(rec.ScenarioID)
	if !ok {
		slog.Warn("Persisted instance references unknown scenario",
			"instance_id", rec.InstanceID, "scenario_id", rec.ScenarioID)
	}
	inst := &Instance{
		InstanceID: rec.InstanceID,
		ScenarioID: rec.ScenarioID,
		Template:   t,
		State:      world.FromSnapshot(rec.InstanceID, rec.State, bus),
		CreatedAt:  rec.CreatedAt,
		status:     StatusActive,
		players:    append([]string(nil), rec.Players...),
	}
	if !rec.Active {
		inst.status = StatusStopped
	}
	return inst
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
