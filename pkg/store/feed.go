package store

import (
	"sync"
	"time"
)

// feedCap bounds the feed; older entries are discarded.
const feedCap = 200

// FeedEntry is one condensed action summary shown on the public feed.
type FeedEntry struct {
	Timestamp time.Time `json:"timestamp"`
	GameID    string    `json:"game_id"`
	AgentID   string    `json:"agent_id"`
	Turn      int       `json:"turn"`
	Summary   string    `json:"summary"`
}

// Feed is the global bounded feed. One per process; sessions from every
// instance share it.
type Feed struct {
	mu      sync.Mutex
	entries []FeedEntry
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// LogAction appends an entry, evicting the oldest past the cap.
func (f *Feed) LogAction(gameID, agentID string, turn int, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, FeedEntry{
		Timestamp: time.Now(),
		GameID:    gameID,
		AgentID:   agentID,
		Turn:      turn,
		Summary:   summary,
	})
	if len(f.entries) > feedCap {
		f.entries = f.entries[len(f.entries)-feedCap:]
	}
}

// Recent returns up to limit entries, newest first.
func (f *Feed) Recent(limit int) []FeedEntry {
	if limit <= 0 {
		limit = 50
	}
	if limit > feedCap {
		limit = feedCap
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	out := make([]FeedEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = f.entries[len(f.entries)-1-i]
	}
	return out
}
