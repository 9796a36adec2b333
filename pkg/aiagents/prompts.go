package aiagents

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Prompt builders shared by the provider implementations. Both providers
// consume identical prompts; only the transport differs.

const generatorSystemPrompt = "You are a creative game world builder. " +
	"Return only valid JSON with no extra commentary or markdown."

const reactionSystemPrompt = "You are a reactive NPC. Return only valid JSON, no commentary."

const idleSystemPrompt = "You are an NPC going about their day. Return only valid JSON, no commentary."

func buildStoresPrompt(ctx map[string]any) string {
	num := intFromContext(ctx, "num_stores", 4)
	themes := themesFromContext(ctx)
	return fmt.Sprintf(`Generate %d unique market stores for a fantasy setting.
Themes: %s

For each store, provide JSON:
{
  "store_id": "unique_id",
  "name": "store name",
  "proprietor": "owner name",
  "proprietor_personality": "short description",
  "store_type": "general/specialty/black_market/rare",
  "pricing_multiplier": 1.0-3.0
}

Make each store unique and interesting. Return a valid JSON array only.`, num, themes)
}

func buildNPCsPrompt(ctx map[string]any) string {
	num := intFromContext(ctx, "num_npcs", 6)
	themes := themesFromContext(ctx)
	return fmt.Sprintf(`Generate %d unique NPCs for a market scenario.
Themes: %s

For each NPC, provide JSON:
{
  "npc_id": "unique_id",
  "name": "npc name",
  "job": "shopkeeper/guard/thief/merchant/broker",
  "personality": "brief description of character",
  "initial_trust": 0.0-1.0
}

Create diverse, interesting characters. Return a valid JSON array only.`, num, themes)
}

func buildItemsPrompt(ctx map[string]any) string {
	num := intFromContext(ctx, "num_items", 15)
	return fmt.Sprintf(`Generate %d unique items for a fantasy market.
Rarities: common, uncommon, rare, legendary

For each item, provide JSON:
{
  "item_id": "unique_id",
  "name": "item name",
  "value": 10-1000,
  "rarity": "common/uncommon/rare/legendary",
  "tradeable": true/false
}

Make items diverse (tools, gems, potions, artifacts, etc).
Return a valid JSON array only.`, num)
}

func buildTargetItemPrompt(ctx map[string]any) string {
	objective, _ := ctx["objective"].(string)
	if objective == "" {
		objective = "acquire a precious item"
	}
	return fmt.Sprintf(`Create ONE valuable target item for a player to obtain.
Objective: %s

Return JSON:
{
  "item_id": "unique_id",
  "name": "item name",
  "value": 1000-5000,
  "rarity": "legendary",
  "location": "which store has it"
}

Make it interesting and desirable. Return valid JSON only.`, objective)
}

func buildReactionPrompt(ctx map[string]any) string {
	name := stringFromContext(ctx, "npc_name", "NPC")
	job := stringFromContext(ctx, "npc_job", "unknown")
	personality := stringFromContext(ctx, "npc_personality", "neutral")
	trust := floatFromContext(ctx, "npc_trust", 0.5)

	var descs []string
	if evs, ok := ctx["events"].([]map[string]any); ok {
		for _, ev := range evs {
			descs = append(descs, fmt.Sprintf("%v: %v", ev["type"], ev["data"]))
		}
	}
	return fmt.Sprintf(`You are %s, a %s. Personality: %s. Current trust in the player: %.1f/1.0.

The following events just happened nearby: %s

How does this change your attitude toward the player?
Return JSON ONLY:
{
  "trust_delta": <float -0.3 to 0.3>,
  "mood": "<one word>",
  "last_ai_message": "<brief in-character reaction, 1 sentence>"
}`, name, job, personality, trust, strings.Join(descs, "; "))
}

func buildIdlePrompt(ctx map[string]any) string {
	name := stringFromContext(ctx, "npc_name", "NPC")
	job := stringFromContext(ctx, "npc_job", "unknown")
	personality := stringFromContext(ctx, "npc_personality", "neutral")
	mood := stringFromContext(ctx, "npc_mood", "neutral")
	turn := intFromContext(ctx, "world_turn", 0)
	return fmt.Sprintf(`You are %s, a %s. Personality: %s. Current mood: %s. World turn: %d.

What are you doing right now?
Return JSON ONLY:
{
  "mood": "<one word>",
  "last_ai_message": "<brief in-character idle action, 1 sentence>"
}`, name, job, personality, mood, turn)
}

// stripFences removes markdown code fences that models sometimes wrap
// around JSON despite instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// decodeObject parses a JSON object from model output. Parse failures
// yield an empty map so NPC updates degrade to no-ops, never errors.
func decodeObject(raw string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// decodeArray parses a JSON array of objects from model output.
func decodeArray(raw string) ([]map[string]any, bool) {
	var out []map[string]any
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, false
	}
	return out, true
}

func intFromContext(ctx map[string]any, key string, fallback int) int {
	switch v := ctx[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func floatFromContext(ctx map[string]any, key string, fallback float64) float64 {
	switch v := ctx[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func stringFromContext(ctx map[string]any, key, fallback string) string {
	if v, ok := ctx[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func themesFromContext(ctx map[string]any) string {
	if raw, ok := ctx["themes"].([]string); ok && len(raw) > 0 {
		return strings.Join(raw, ", ")
	}
	if raw, ok := ctx["themes"].([]any); ok && len(raw) > 0 {
		parts := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}
	return "market"
}

// memTurn is one user/assistant exchange retained per NPC.
type memTurn struct {
	user      string
	assistant string
}

// npcMemory holds bounded per-NPC conversation history inside a worker.
// This state belongs to the worker, not to world state.
type npcMemory struct {
	mu    sync.Mutex
	turns map[string][]memTurn
	cap   int
}

func newNPCMemory() *npcMemory {
	return &npcMemory{turns: make(map[string][]memTurn), cap: 10}
}

// history returns the retained exchanges for an NPC, oldest first.
func (m *npcMemory) history(npcID string) []memTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memTurn, len(m.turns[npcID]))
	copy(out, m.turns[npcID])
	return out
}

// remember appends an exchange, evicting the oldest past the cap.
func (m *npcMemory) remember(npcID, user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := append(m.turns[npcID], memTurn{user: user, assistant: assistant})
	if len(turns) > m.cap {
		turns = turns[len(turns)-m.cap:]
	}
	m.turns[npcID] = turns
}
