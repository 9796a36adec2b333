package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-andres/AgenticRealm/pkg/world"
)

func TestManagerIndexes(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)), nil)

	standalone := m.Create(testTemplate(), "agent_1", nil, "")
	attached := m.Create(testTemplate(), "agent_2", nil, "inst-1")

	got, ok := m.Get(standalone.GameID)
	require.True(t, ok)
	assert.Equal(t, standalone.GameID, got.GameID)

	got, ok = m.GetByInstanceAgent("inst-1", "agent_2")
	require.True(t, ok)
	assert.Equal(t, attached.GameID, got.GameID)

	_, ok = m.GetByInstanceAgent("inst-1", "agent_1")
	assert.False(t, ok)

	m.DropInstance("inst-1")
	_, ok = m.GetByInstanceAgent("inst-1", "agent_2")
	assert.False(t, ok)
	_, ok = m.Get(attached.GameID)
	assert.False(t, ok)
	_, ok = m.Get(standalone.GameID)
	assert.True(t, ok)
}

func TestStartAndEnd(t *testing.T) {
	m := NewManager(rand.New(rand.NewSource(1)), nil)
	s := m.Create(testTemplate(), "agent_1", nil, "")

	require.NoError(t, m.Start(s.GameID))
	assert.Equal(t, StatusInProgress, s.Status())
	require.NoError(t, m.End(s.GameID))
	assert.Equal(t, StatusCompleted, s.Status())

	assert.ErrorIs(t, m.Start("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, m.End("nope"), ErrSessionNotFound)
}

// stockSession prepares one in-progress session whose world holds a store
// with stealCount items and a player who cannot be eliminated mid-test.
func stockSession(t *testing.T, m *Manager, agentID string, stealCount int) *Session {
	t.Helper()
	s := m.Create(testTemplate(), agentID, nil, "")
	s.Begin()
	withState(s, func(st *world.State) {
		store := world.NewEntity("store_1", world.TypeStore, 60, 60, nil)
		for i := 0; i < stealCount; i++ {
			world.AddToInventoryMap(store, world.Item{
				ItemID: fmt.Sprintf("gem_%02d", i), Name: "Gem", Value: 10,
			})
		}
		st.AddEntity(store)
		st.Entity(agentID).Properties["health"] = 1e9
	})
	return s
}

// Sessions created by one manager must be able to roll randomness on
// separate goroutines at the same time.
func TestSessionsRollIndependently(t *testing.T) {
	const steals = 50
	m := NewManager(rand.New(rand.NewSource(1)), nil)
	first := stockSession(t, m, "agent_1", steals)
	second := stockSession(t, m, "agent_2", steals)

	var wg sync.WaitGroup
	for _, s := range []*Session{first, second} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := 0; i < steals; i++ {
				s.ProcessAction("steal", map[string]any{
					"store_id": "store_1",
					"item_id":  fmt.Sprintf("gem_%02d", i),
				})
			}
		}(s)
	}
	wg.Wait()

	for _, s := range []*Session{first, second} {
		assert.Equal(t, steals, s.Turn())
		// Every gem is still in exactly one inventory.
		withState(s, func(st *world.State) {
			held := len(world.InventoryList(st.Entity(s.AgentID)))
			stocked := len(world.InventoryMap(st.Entity("store_1")))
			assert.Equal(t, steals, held+stocked)
		})
	}
}
