// Package game runs per-player sessions: deterministic action processing
// against a shared world, turn accounting, and result scoring. A session
// never waits on AI work; NPC reactions happen asynchronously on the tick
// loop after the action response has been returned.
package game

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// Session status values.
const (
	StatusStarted    = "started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// FeedLogger receives condensed action summaries for the public feed.
type FeedLogger interface {
	LogAction(gameID, agentID string, turn int, summary string)
}

// ActionRecord is one entry of the append-only session action log.
type ActionRecord struct {
	Turn   int            `json:"turn"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Session is one player's run against a world. Standalone sessions own a
// fresh world; sessions created through an instance join borrow the
// instance's shared state.
type Session struct {
	GameID     string
	ScenarioID string
	AgentID    string
	InstanceID string

	template *scenario.Template
	state    *world.State
	rng      *rand.Rand
	feed     FeedLogger

	mu          sync.Mutex // serializes actions within the session
	status      string
	turn        int
	actions     []ActionRecord
	createdAt   time.Time
	completedAt *time.Time
}

// NewSession builds a session. existing may be nil, in which case a fresh
// detached world is created and populated from the template's static
// layout. rng drives steal probability rolls.
func NewSession(gameID string, t *scenario.Template, agentID string, existing *world.State, instanceID string, rng *rand.Rand, feed FeedLogger) *Session {
	s := &Session{
		GameID:     gameID,
		ScenarioID: t.ScenarioID,
		AgentID:    agentID,
		InstanceID: instanceID,
		template:   t,
		rng:        rng,
		feed:       feed,
		status:     StatusStarted,
		createdAt:  time.Now(),
	}

	if existing != nil {
		s.state = existing
		s.ensurePlayer()
		return s
	}

	st := world.NewState("", nil)
	s.state = st
	st.Lock()
	st.Properties["world_width"] = t.WorldWidth
	st.Properties["world_height"] = t.WorldHeight
	st.Properties["max_turns"] = t.MaxTurns
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
	st.Unlock()
	s.ensurePlayer()
	return s
}

func (s *Session) ensurePlayer() {
	st := s.state
	st.Lock()
	defer st.Unlock()
	if st.Entity(s.AgentID) != nil {
		return
	}
	st.AddEntity(world.NewEntity(s.AgentID, world.TypeAgent,
		s.template.StartingPosition[0], s.template.StartingPosition[1],
		map[string]any{
			"health":    100.0,
			"score":     0.0,
			"gold":      s.template.StartingGold,
			"inventory": []any{},
		}))
}

// State returns the session's world.
func (s *Session) State() *world.State { return s.state }

// Status returns the session status.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn returns the session turn counter.
func (s *Session) Turn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Begin transitions the session to in_progress.
func (s *Session) Begin() {
	s.mu.Lock()
	if s.status == StatusStarted {
		s.status = StatusInProgress
	}
	s.mu.Unlock()
}

// End marks the session completed if it has not already terminated.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusCompleted || s.status == StatusFailed {
		return
	}
	s.status = StatusCompleted
	now := time.Now()
	s.completedAt = &now
}

func (s *Session) maxTurns() int {
	if s.template != nil && s.template.MaxTurns > 0 {
		return s.template.MaxTurns
	}
	return 150
}

// ProcessAction applies one action and returns (success, message, update).
// The turn counter advances on every recognized verb, including verbs that
// fail parameter validation; syntactically unknown verbs do not consume a
// turn. Errors never cross this boundary.
func (s *Session) ProcessAction(action string, params map[string]any) (bool, string, map[string]any) {
	if params == nil {
		params = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return false, "Game is not in progress", map[string]any{}
	}
	if s.turn >= s.maxTurns() {
		s.status = StatusCompleted
		return false, "Maximum turns reached", map[string]any{}
	}

	handler, recognized := s.handler(action)
	if !recognized {
		return false, fmt.Sprintf("Unknown action: %s", action), map[string]any{}
	}

	s.turn++
	s.actions = append(s.actions, ActionRecord{Turn: s.turn, Action: action, Params: params})

	if summary, ok := params["prompt_summary"].(string); ok && summary != "" && s.feed != nil {
		s.feed.LogAction(s.GameID, s.AgentID, s.turn, summary)
	}

	var success bool
	var message string
	var update map[string]any
	if !s.actionAllowed(action) {
		success = false
		message = fmt.Sprintf("Action not allowed in this scenario: %s", action)
		update = map[string]any{}
	} else {
		s.state.Lock()
		success, message, update = handler(params)
		s.state.Unlock()
	}

	if update == nil {
		update = map[string]any{}
	}
	update["stats"] = s.stats()
	return success, message, update
}

// handler maps a verb to its implementation; the bool reports whether the
// verb is syntactically known.
func (s *Session) handler(action string) (func(map[string]any) (bool, string, map[string]any), bool) {
	switch action {
	case "observe":
		return s.handleObserve, true
	case "move":
		return s.handleMove, true
	case "talk":
		return s.handleTalk, true
	case "negotiate":
		return s.handleNegotiate, true
	case "buy":
		return s.handleBuy, true
	case "hire":
		return s.handleHire, true
	case "steal":
		return s.handleSteal, true
	case "trade":
		return s.handleTrade, true
	case "interact":
		return s.handleInteract, true
	}
	return nil, false
}

func (s *Session) actionAllowed(action string) bool {
	if s.template == nil || len(s.template.AllowedActions) == 0 {
		return true
	}
	for _, a := range s.template.AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

// stats is the compact per-action block attached to every update.
// Caller holds the session lock.
func (s *Session) stats() map[string]any {
	st := s.state
	st.Lock()
	agent := st.Entity(s.AgentID)
	stats := map[string]any{
		"actions_taken": len(s.actions),
		"turn":          s.turn,
	}
	if agent != nil {
		stats["health"] = agent.Health()
		stats["score"] = agent.FloatProp("score", 0)
		stats["gold"] = agent.Gold()
	}
	st.Unlock()
	return stats
}

// Result summarizes a finished (or running) session.
type Result struct {
	GameID      string     `json:"game_id"`
	ScenarioID  string     `json:"scenario_id"`
	AgentID     string     `json:"agent_id"`
	Success     bool       `json:"success"`
	Turn        int        `json:"turn"`
	Score       float64    `json:"score"`
	Reason      string     `json:"reason"`
	Feedback    string     `json:"feedback"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Result computes the session outcome with coaching feedback.
func (s *Session) Result() Result {
	s.mu.Lock()
	status := s.status
	turn := s.turn
	completedAt := s.completedAt
	s.mu.Unlock()

	var score float64
	s.state.Lock()
	if agent := s.state.Entity(s.AgentID); agent != nil {
		score = agent.FloatProp("score", 0)
	}
	s.state.Unlock()

	success := status == StatusCompleted
	reason := "Failed to complete"
	if success {
		reason = "Successfully completed scenario"
	}
	return Result{
		GameID:      s.GameID,
		ScenarioID:  s.ScenarioID,
		AgentID:     s.AgentID,
		Success:     success,
		Turn:        turn,
		Score:       score,
		Reason:      reason,
		Feedback:    s.feedback(status, turn, score),
		CreatedAt:   s.createdAt,
		CompletedAt: completedAt,
	}
}

func (s *Session) feedback(status string, turn int, score float64) string {
	if status == StatusCompleted {
		switch {
		case score > 80:
			return "Excellent! Your agent solved this efficiently."
		case score > 60:
			return "Good! Your agent completed the scenario."
		default:
			return "Your agent completed, but there might be room for optimization."
		}
	}
	if status == StatusFailed {
		return "Your agent was eliminated. Consider improving observation or planning."
	}
	if turn >= s.maxTurns() {
		return "Ran out of turns. Your agent needs better decision-making."
	}
	return "Your agent was unable to complete the scenario."
}

// Snapshot renders the API view of the session and its world.
func (s *Session) Snapshot() map[string]any {
	s.mu.Lock()
	status := s.status
	turn := s.turn
	s.mu.Unlock()

	s.state.Lock()
	snap := s.state.Snapshot()
	s.state.Unlock()

	out := map[string]any{
		"game_id":     s.GameID,
		"scenario_id": s.ScenarioID,
		"agent_id":    s.AgentID,
		"status":      status,
		"turn":        turn,
		"max_turns":   s.maxTurns(),
		"state":       snap,
	}
	if s.InstanceID != "" {
		out["instance_id"] = s.InstanceID
	}
	if s.template != nil {
		out["scenario_info"] = map[string]any{
			"name":         s.template.Name,
			"world_width":  s.template.WorldWidth,
			"world_height": s.template.WorldHeight,
		}
	}
	return out
}
