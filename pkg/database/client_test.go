package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

func openTestDB(t *testing.T) *Client {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testRecord(t *testing.T, scenarioID string) scenario.Record {
	t.Helper()
	tpl, ok := scenario.GetTemplate(scenarioID)
	require.True(t, ok)
	inst := scenario.NewInstance(tpl, nil)
	inst.SetStatus(scenario.StatusActive)
	inst.AddPlayer("agent_1")

	st := inst.State
	st.Lock()
	st.Turn = 9
	st.AddEntity(world.NewEntity("npc_a", world.TypeNPC, 120, 80, map[string]any{
		"trust": 0.7,
		"inventory": map[string]any{
			"item_silk": map[string]any{"item_id": "item_silk", "name": "Silk", "value": 80.0},
		},
	}))
	st.Unlock()
	return inst.ToRecord()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := openTestDB(t)
	rec := testRecord(t, "market_square")

	require.NoError(t, c.SaveInstance(rec))
	loaded, found, err := c.LoadInstance(rec.InstanceID)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, rec.InstanceID, loaded.InstanceID)
	assert.Equal(t, "market_square", loaded.ScenarioID)
	assert.Equal(t, []string{"agent_1"}, loaded.Players)
	assert.True(t, loaded.Active)
	assert.Equal(t, 9, loaded.State.Turn)

	// The restored snapshot rebuilds a usable world.
	restored := world.FromSnapshot(loaded.InstanceID, loaded.State, nil)
	restored.Lock()
	defer restored.Unlock()
	npc := restored.Entity("npc_a")
	require.NotNil(t, npc)
	assert.Equal(t, 0.7, npc.Trust())
	assert.Contains(t, world.InventoryMap(npc), "item_silk")
	assert.NotNil(t, restored.Entity("agent_1"))
}

func TestLoadMissingInstance(t *testing.T) {
	c := openTestDB(t)
	_, found, err := c.LoadInstance("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveIsUpsert(t *testing.T) {
	c := openTestDB(t)
	rec := testRecord(t, "maze_01")
	require.NoError(t, c.SaveInstance(rec))

	rec.State.Turn = 20
	require.NoError(t, c.SaveInstance(rec))

	loaded, found, err := c.LoadInstance(rec.InstanceID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, loaded.State.Turn)

	all, err := c.ListInstances(false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListActiveOnly(t *testing.T) {
	c := openTestDB(t)
	active := testRecord(t, "market_square")
	stopped := testRecord(t, "maze_01")
	stopped.Active = false

	require.NoError(t, c.SaveInstance(active))
	require.NoError(t, c.SaveInstance(stopped))

	onlyActive, err := c.ListInstances(true)
	require.NoError(t, err)
	require.Len(t, onlyActive, 1)
	assert.Equal(t, active.InstanceID, onlyActive[0].InstanceID)

	all, err := c.ListInstances(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMarkInstanceInactive(t *testing.T) {
	c := openTestDB(t)
	rec := testRecord(t, "market_square")
	require.NoError(t, c.SaveInstance(rec))

	require.NoError(t, c.MarkInstanceInactive(rec.InstanceID))

	loaded, found, err := c.LoadInstance(rec.InstanceID)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, loaded.Active)

	onlyActive, err := c.ListInstances(true)
	require.NoError(t, err)
	assert.Empty(t, onlyActive)
}

func TestDeleteInstance(t *testing.T) {
	c := openTestDB(t)
	rec := testRecord(t, "maze_01")
	require.NoError(t, c.SaveInstance(rec))

	require.NoError(t, c.DeleteInstance(rec.InstanceID))
	_, found, err := c.LoadInstance(rec.InstanceID)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is a no-op.
	require.NoError(t, c.DeleteInstance(rec.InstanceID))
}
