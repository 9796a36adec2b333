package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	s := NewAgentStore()
	a := s.Register("TraderBot", "buys low", "dev@example.com", "gpt-4o",
		"You are a trader.", map[string]int{"negotiation": 7})

	require.NotEmpty(t, a.AgentID)
	assert.True(t, s.Exists(a.AgentID))

	got, ok := s.Get(a.AgentID)
	require.True(t, ok)
	assert.Equal(t, "TraderBot", got.Name)
	assert.Equal(t, 7, got.Skills["negotiation"])
	assert.Equal(t, 0, got.GamesPlayed)

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestAllOldestFirst(t *testing.T) {
	s := NewAgentStore()
	first := s.Register("a", "", "", "", "", nil)
	second := s.Register("b", "", "", "", "", nil)

	// Distinct creation times regardless of clock resolution.
	s.mu.Lock()
	s.agents[second.AgentID].CreatedAt = s.agents[first.AgentID].CreatedAt.Add(1)
	s.mu.Unlock()

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, first.AgentID, all[0].AgentID)
	assert.Equal(t, second.AgentID, all[1].AgentID)
}

func TestRecordResult(t *testing.T) {
	s := NewAgentStore()
	a := s.Register("a", "", "", "", "", nil)

	s.RecordResult(a.AgentID, true)
	s.RecordResult(a.AgentID, false)
	s.RecordResult("nope", true)

	got, _ := s.Get(a.AgentID)
	assert.Equal(t, 2, got.GamesPlayed)
	assert.Equal(t, 1, got.GamesWon)
}

func TestFeedNewestFirst(t *testing.T) {
	f := NewFeed()
	for i := 0; i < 5; i++ {
		f.LogAction("game-1", "agent_1", i, fmt.Sprintf("action %d", i))
	}

	recent := f.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "action 4", recent[0].Summary)
	assert.Equal(t, "action 2", recent[2].Summary)
}

func TestFeedDefaultAndMaxLimits(t *testing.T) {
	f := NewFeed()
	for i := 0; i < 300; i++ {
		f.LogAction("game-1", "agent_1", i, fmt.Sprintf("action %d", i))
	}

	assert.Len(t, f.Recent(0), 50)
	assert.Len(t, f.Recent(1000), feedCap)
}

func TestFeedEvictsOldest(t *testing.T) {
	f := NewFeed()
	for i := 0; i < feedCap+50; i++ {
		f.LogAction("game-1", "agent_1", i, fmt.Sprintf("action %d", i))
	}

	recent := f.Recent(feedCap)
	require.Len(t, recent, feedCap)
	// The oldest surviving entry is number 50.
	assert.Equal(t, "action 50", recent[feedCap-1].Summary)
	assert.Equal(t, fmt.Sprintf("action %d", feedCap+49), recent[0].Summary)
}
