package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// ErrSessionNotFound is returned for unknown game or (instance, agent) keys.
var ErrSessionNotFound = errors.New("session not found")

// Manager tracks live sessions by game id and by (instance, agent) pair.
// The latter index serves the action endpoint that addresses instances
// directly.
type Manager struct {
	feed FeedLogger

	mu         sync.Mutex
	rng        *rand.Rand // master source; session streams derive under mu
	sessions   map[string]*Session
	byInstance map[string]*Session // key: instanceID + "/" + agentID
}

// NewManager creates a session manager. rng is the master randomness
// source: each session gets its own stream seeded from it, so sessions on
// different goroutines never share rng state. feed may be nil.
func NewManager(rng *rand.Rand, feed FeedLogger) *Manager {
	return &Manager{
		rng:        rng,
		feed:       feed,
		sessions:   make(map[string]*Session),
		byInstance: make(map[string]*Session),
	}
}

// Create builds a session. Pass existing and instanceID to attach to a
// running instance's world; pass nil for a standalone game.
func (m *Manager) Create(t *scenario.Template, agentID string, existing *world.State, instanceID string) *Session {
	m.mu.Lock()
	seed := m.rng.Int63()
	m.mu.Unlock()
	s := NewSession(uuid.NewString(), t, agentID, existing, instanceID, rand.New(rand.NewSource(seed)), m.feed)

	m.mu.Lock()
	m.sessions[s.GameID] = s
	if instanceID != "" {
		m.byInstance[instanceKey(instanceID, agentID)] = s
	}
	m.mu.Unlock()

	slog.Info("Created session",
		"game_id", s.GameID, "agent_id", agentID, "scenario_id", t.ScenarioID,
		"instance_id", instanceID)
	return s
}

// Get returns the session for a game id.
func (m *Manager) Get(gameID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[gameID]
	return s, ok
}

// GetByInstanceAgent returns the session for an (instance, agent) pair.
func (m *Manager) GetByInstanceAgent(instanceID, agentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byInstance[instanceKey(instanceID, agentID)]
	return s, ok
}

// Start transitions a session to in_progress.
func (m *Manager) Start(gameID string) error {
	s, ok := m.Get(gameID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
	}
	s.Begin()
	return nil
}

// End marks a session completed.
func (m *Manager) End(gameID string) error {
	s, ok := m.Get(gameID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
	}
	s.End()
	return nil
}

// DropInstance removes every session attached to a deleted instance.
func (m *Manager) DropInstance(instanceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.byInstance {
		if s.InstanceID == instanceID {
			delete(m.byInstance, key)
			delete(m.sessions, s.GameID)
		}
	}
}

func instanceKey(instanceID, agentID string) string {
	return instanceID + "/" + agentID
}
