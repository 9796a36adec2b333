// Package store holds the in-memory registries that back the public API:
// the player agent catalog and the bounded presentation feed.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Agent is a registered external player agent.
type Agent struct {
	AgentID      string         `json:"agent_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Creator      string         `json:"creator"`
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	Skills       map[string]int `json:"skills"`
	CreatedAt    time.Time      `json:"created_at"`
	GamesPlayed  int            `json:"games_played"`
	GamesWon     int            `json:"games_won"`
}

// AgentStore is the in-memory player agent registry.
type AgentStore struct {
	mu     sync.Mutex
	agents map[string]*Agent
}

// NewAgentStore creates an empty store.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]*Agent)}
}

// Register assigns an id and stores the agent.
func (s *AgentStore) Register(name, description, creator, model, systemPrompt string, skills map[string]int) *Agent {
	a := &Agent{
		AgentID:      uuid.NewString(),
		Name:         name,
		Description:  description,
		Creator:      creator,
		Model:        model,
		SystemPrompt: systemPrompt,
		Skills:       skills,
		CreatedAt:    time.Now(),
	}
	s.mu.Lock()
	s.agents[a.AgentID] = a
	s.mu.Unlock()
	slog.Info("Registered agent", "agent_id", a.AgentID, "name", name)
	return a
}

// Get returns a copy of the agent.
func (s *AgentStore) Get(agentID string) (Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

// Exists reports whether the agent id is registered.
func (s *AgentStore) Exists(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[agentID]
	return ok
}

// All returns every agent, oldest first.
func (s *AgentStore) All() []Agent {
	s.mu.Lock()
	out := make([]Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, *a)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecordResult updates an agent's game statistics.
func (s *AgentStore) RecordResult(agentID string, won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return
	}
	a.GamesPlayed++
	if won {
		a.GamesWon++
	}
}
