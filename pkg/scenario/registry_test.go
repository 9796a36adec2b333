package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-andres/AgenticRealm/pkg/events"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

func TestTemplateCatalog(t *testing.T) {
	all := AllTemplates()
	require.Len(t, all, 3)
	assert.Equal(t, "market_square", all[0].ScenarioID)
	assert.Equal(t, "maze_01", all[1].ScenarioID)
	assert.Equal(t, "treasure_01", all[2].ScenarioID)

	market, ok := GetTemplate("market_square")
	require.True(t, ok)
	assert.True(t, market.Generated)
	assert.Equal(t, 150, market.MaxTurns)

	maze, ok := GetTemplate("maze_01")
	require.True(t, ok)
	assert.False(t, maze.Generated)
	assert.Len(t, maze.Hazards, 3)
	require.NotNil(t, maze.Exit)

	assert.False(t, TemplateExists("nope"))
}

func TestCreateSeedsWorldProperties(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	inst, err := r.Create("maze_01")
	require.NoError(t, err)

	assert.Equal(t, StatusGenerating, inst.Status())
	assert.NotEmpty(t, inst.InstanceID)

	st := inst.State
	st.Lock()
	defer st.Unlock()
	assert.Equal(t, 400.0, st.Properties["world_width"])
	assert.Equal(t, 300.0, st.Properties["world_height"])
	assert.Equal(t, 50, st.Properties["max_turns"])
	assert.Equal(t, "Simple Maze", st.Properties["scenario_name"])

	// Static layout lands at creation.
	assert.NotNil(t, st.Entity("hazard_1"))
	exit := st.Entity("exit")
	require.NotNil(t, exit)
	assert.Equal(t, world.TypeExit, exit.Type)
}

func TestCreateUnknownScenario(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	_, err := r.Create("nope")
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestListNewestFirst(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	first, err := r.Create("maze_01")
	require.NoError(t, err)
	second, err := r.Create("treasure_01")
	require.NoError(t, err)
	// Force distinct ordering regardless of clock resolution.
	second.CreatedAt = first.CreatedAt.Add(1)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.InstanceID, list[0].InstanceID)
	assert.Equal(t, first.InstanceID, list[1].InstanceID)
}

func TestStopAndDelete(t *testing.T) {
	bus := events.NewBus()
	r := NewRegistry(bus, nil)
	inst, err := r.Create("maze_01")
	require.NoError(t, err)

	require.NoError(t, r.Stop(inst.InstanceID))
	assert.Equal(t, StatusStopped, inst.Status())

	// Delete discards queued events along with the instance.
	bus.Publish(events.GameEvent{InstanceID: inst.InstanceID, EventType: "talk"})
	require.NoError(t, r.Delete(inst.InstanceID))
	assert.Equal(t, 0, bus.PendingCount(inst.InstanceID))

	_, ok := r.Get(inst.InstanceID)
	assert.False(t, ok)
	assert.ErrorIs(t, r.Delete(inst.InstanceID), ErrUnknownInstance)
	assert.ErrorIs(t, r.Stop(inst.InstanceID), ErrUnknownInstance)
}

func TestAddPlayerIdempotent(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	inst, err := r.Create("market_square")
	require.NoError(t, err)

	inst.AddPlayer("agent_1")
	inst.AddPlayer("agent_1")
	inst.AddPlayer("agent_2")

	assert.Equal(t, []string{"agent_1", "agent_2"}, inst.Players())
	assert.True(t, inst.HasPlayer("agent_1"))
	assert.False(t, inst.HasPlayer("agent_9"))

	st := inst.State
	st.Lock()
	defer st.Unlock()
	agent := st.Entity("agent_1")
	require.NotNil(t, agent)
	assert.Equal(t, 400.0, agent.X)
	assert.Equal(t, 300.0, agent.Y)
	assert.Equal(t, 500.0, agent.Gold())
	assert.Equal(t, 100.0, agent.Health())
}

func TestRecordRoundTrip(t *testing.T) {
	bus := events.NewBus()
	r := NewRegistry(bus, nil)
	inst, err := r.Create("market_square")
	require.NoError(t, err)
	inst.SetStatus(StatusActive)
	inst.AddPlayer("agent_1")

	st := inst.State
	st.Lock()
	st.Turn = 12
	st.AddEntity(world.NewEntity("npc_a", world.TypeNPC, 100, 100, map[string]any{"trust": 0.7}))
	st.Unlock()

	rec := inst.ToRecord()
	assert.True(t, rec.Active)

	restored := FromRecord(rec, bus)
	assert.Equal(t, inst.InstanceID, restored.InstanceID)
	assert.Equal(t, StatusActive, restored.Status())
	assert.Equal(t, []string{"agent_1"}, restored.Players())

	rst := restored.State
	rst.Lock()
	defer rst.Unlock()
	assert.Equal(t, 12, rst.Turn)
	require.NotNil(t, rst.Entity("npc_a"))
	assert.Equal(t, 0.7, rst.Entity("npc_a").Trust())
}

// Generation never survives a restart; a record saved mid-generation comes
// back active.
func TestGeneratingRecordRestoresActive(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	inst, err := r.Create("market_square")
	require.NoError(t, err)
	require.Equal(t, StatusGenerating, inst.Status())

	restored := FromRecord(inst.ToRecord(), events.NewBus())
	assert.Equal(t, StatusActive, restored.Status())
}

// A record can outlive its scenario in the catalog. Restoring it must not
// blow up later joins.
func TestRetiredScenarioRecordRestoresWithoutTemplate(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	inst, err := r.Create("market_square")
	require.NoError(t, err)
	inst.SetStatus(StatusActive)

	rec := inst.ToRecord()
	rec.ScenarioID = "retired_01"

	restored := FromRecord(rec, events.NewBus())
	require.Nil(t, restored.Template)
	assert.Equal(t, StatusActive, restored.Status())

	// Without a template there is no starting position; the join is a
	// no-op instead of a panic.
	restored.AddPlayer("agent_1")
	assert.Empty(t, restored.Players())
	restored.State.Lock()
	assert.Nil(t, restored.State.Entity("agent_1"))
	restored.State.Unlock()
}

func TestStoppedRecordRestoresStopped(t *testing.T) {
	r := NewRegistry(events.NewBus(), nil)
	inst, err := r.Create("maze_01")
	require.NoError(t, err)
	require.NoError(t, r.Stop(inst.InstanceID))

	restored := FromRecord(inst.ToRecord(), events.NewBus())
	assert.Equal(t, StatusStopped, restored.Status())
}
