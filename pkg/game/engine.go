package game

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/d-andres/AgenticRealm/pkg/world"
)

// Default action radii and costs.
const (
	observeRadius   = 150.0
	moveDistance    = 10.0
	guardWatchRange = 100.0
	stealDamage     = 20.0
)

// All handlers run with the world state lock held and never perform I/O.
// They return (success, message, update); rejected actions carry a
// diagnostic message and mutate nothing.

func (s *Session) agent() *world.Entity {
	return s.state.Entity(s.AgentID)
}

func (s *Session) handleObserve(params map[string]any) (bool, string, map[string]any) {
	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}
	radius := paramFloat(params, "radius", observeRadius)

	type observed struct {
		entry map[string]any
		dist  float64
		id    string
	}
	var nearby []observed
	for _, e := range s.state.Entities() {
		if e.ID == s.AgentID {
			continue
		}
		d := agent.DistanceTo(e)
		if d >= radius {
			continue
		}
		nearby = append(nearby, observed{
			id:   e.ID,
			dist: d,
			entry: map[string]any{
				"id":         e.ID,
				"type":       e.Type,
				"distance":   d,
				"position":   map[string]any{"x": e.X, "y": e.Y},
				"properties": deepCopy(e.Properties),
			},
		})
	}
	sort.Slice(nearby, func(i, j int) bool {
		if nearby[i].dist != nearby[j].dist {
			return nearby[i].dist < nearby[j].dist
		}
		return nearby[i].id < nearby[j].id
	})

	entries := make([]map[string]any, len(nearby))
	for i, n := range nearby {
		entries[i] = n.entry
	}
	return true, fmt.Sprintf("Observed %d entities", len(entries)), map[string]any{
		"entities": entries,
		"turn":     s.turn,
	}
}

func (s *Session) handleMove(params map[string]any) (bool, string, map[string]any) {
	direction, _ := params["direction"].(string)
	distance := paramFloat(params, "distance", moveDistance)

	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}

	newX, newY := agent.X, agent.Y
	switch direction {
	case "up":
		newY -= distance
	case "down":
		newY += distance
	case "left":
		newX -= distance
	case "right":
		newX += distance
	default:
		return false, fmt.Sprintf("Invalid direction: %s", direction), nil
	}

	if !s.state.InBounds(newX, newY) {
		return false, "Out of bounds", nil
	}

	// Hazards resolve before exits; the first hit in stable iteration
	// order wins and the move stops there.
	for _, e := range s.state.Entities() {
		if e.Type != world.TypeHazard {
			continue
		}
		if dist(newX, newY, e.X, e.Y) < e.FloatProp("radius", 0) {
			damage := e.FloatProp("damage", 0)
			health := agent.Health() - damage
			agent.Properties["health"] = health
			s.state.LogEvent("hazard_hit", map[string]any{
				"agent_id":  s.AgentID,
				"hazard_id": e.ID,
				"damage":    damage,
			})
			if health <= 0 {
				s.status = StatusFailed
				return false, "Eliminated! You succumbed to a hazard.", map[string]any{"health": health}
			}
			return false, fmt.Sprintf("Hit a hazard! Health: %.0f", health), map[string]any{"health": health}
		}
	}

	for _, e := range s.state.Entities() {
		if e.Type != world.TypeExit {
			continue
		}
		if dist(newX, newY, e.X, e.Y) < e.FloatProp("radius", 0) {
			agent.X, agent.Y = newX, newY
			s.complete()
			score := math.Max(0, 100-(float64(s.turn)/float64(s.maxTurns()))*50)
			agent.Properties["score"] = score
			s.state.LogEvent("exit_reached", map[string]any{
				"agent_id": s.AgentID,
				"score":    score,
			})
			return true, "Exit reached! Success!", map[string]any{
				"position": map[string]any{"x": newX, "y": newY},
				"score":    score,
			}
		}
	}

	agent.X, agent.Y = newX, newY
	s.state.LogEvent("move", map[string]any{
		"agent_id":  s.AgentID,
		"direction": direction,
		"x":         newX,
		"y":         newY,
	})
	return true, fmt.Sprintf("Moved %s", direction), map[string]any{
		"position": map[string]any{"x": newX, "y": newY},
		"turn":     s.turn,
	}
}

func (s *Session) handleTalk(params map[string]any) (bool, string, map[string]any) {
	npc, fail := s.resolveNPC(params, "npc_id")
	if npc == nil {
		return false, fail, nil
	}
	message, _ := params["message"].(string)

	s.state.LogEvent("talk", map[string]any{
		"npc_id":   npc.ID,
		"agent_id": s.AgentID,
		"message":  message,
	})

	response := npc.StringProp("default_response",
		fmt.Sprintf("%s acknowledges you.", npc.StringProp("name", npc.ID)))
	return true, response, map[string]any{
		"npc_id":   npc.ID,
		"response": response,
	}
}

func (s *Session) handleNegotiate(params map[string]any) (bool, string, map[string]any) {
	npc, fail := s.resolveNPC(params, "npc_id")
	if npc == nil {
		return false, fail, nil
	}
	itemID, _ := params["item_id"].(string)
	offered := paramFloat(params, "offered_price", -1)
	if itemID == "" || offered < 0 {
		return false, "negotiate requires item_id and offered_price", nil
	}

	inv := world.InventoryMap(npc)
	item, ok := inv[itemID]
	if !ok {
		return false, fmt.Sprintf("%s does not have item %s", npc.StringProp("name", npc.ID), itemID), nil
	}

	base := item.Value * npc.PricingMultiplier()
	accepted := offered >= 0.8*base

	s.state.LogEvent("negotiate", map[string]any{
		"npc_id":        npc.ID,
		"agent_id":      s.AgentID,
		"item_id":       itemID,
		"offered_price": offered,
		"accepted":      accepted,
	})

	update := map[string]any{"accepted": accepted, "counter_price": base}
	if accepted {
		return true, fmt.Sprintf("Offer accepted at %.0f gold", offered), update
	}
	return true, fmt.Sprintf("Offer rejected. Counter price: %.0f gold", base), update
}

func (s *Session) handleBuy(params map[string]any) (bool, string, map[string]any) {
	store, fail := s.resolveStore(params)
	if store == nil {
		return false, fail, nil
	}
	itemID, _ := params["item_id"].(string)
	inv := world.InventoryMap(store)
	item, ok := inv[itemID]
	if !ok {
		return false, fmt.Sprintf("Item %s is not in stock", itemID), nil
	}

	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}

	price := math.Round(item.Value * store.PricingMultiplier())
	gold := agent.Gold()
	if gold < price {
		return false, fmt.Sprintf("Insufficient gold: need %.0f, have %.0f", price, gold), map[string]any{
			"gold_remaining": gold,
			"price":          price,
		}
	}

	agent.Properties["gold"] = gold - price
	store.Properties["gold"] = store.Gold() + price
	world.RemoveFromInventoryMap(store, itemID)
	world.AppendToInventoryList(agent, item)

	s.state.LogEvent("buy", map[string]any{
		"agent_id": s.AgentID,
		"store_id": store.ID,
		"item_id":  itemID,
		"price":    price,
	})

	update := map[string]any{
		"item":           item.AsMap(),
		"price":          price,
		"gold_remaining": gold - price,
	}

	if targetID, _ := s.state.Properties["target_item_id"].(string); targetID != "" && targetID == itemID {
		s.complete()
		score := math.Max(0, 100-(float64(s.turn)/float64(s.maxTurns()))*30)
		agent.Properties["score"] = score
		update["score"] = score
		return true, fmt.Sprintf("Acquired the target item %s! Scenario complete.", item.Name), update
	}
	return true, fmt.Sprintf("Bought %s for %.0f gold", item.Name, price), update
}

func (s *Session) handleHire(params map[string]any) (bool, string, map[string]any) {
	npc, fail := s.resolveNPC(params, "npc_id")
	if npc == nil {
		return false, fail, nil
	}
	costRaw, present := npc.Properties["hiring_cost"]
	cost, ok := floatValue(costRaw)
	if !present || !ok {
		return false, fmt.Sprintf("%s is not for hire", npc.StringProp("name", npc.ID)), nil
	}

	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}
	gold := agent.Gold()
	if gold < cost {
		return false, fmt.Sprintf("Insufficient gold: hiring costs %.0f, have %.0f", cost, gold), map[string]any{
			"gold_remaining": gold,
		}
	}

	agent.Properties["gold"] = gold - cost
	npc.Properties["hired_by"] = s.AgentID

	s.state.LogEvent("hire", map[string]any{
		"npc_id":   npc.ID,
		"agent_id": s.AgentID,
		"cost":     cost,
	})
	return true, fmt.Sprintf("Hired %s for %.0f gold", npc.StringProp("name", npc.ID), cost), map[string]any{
		"npc_id":         npc.ID,
		"gold_remaining": gold - cost,
	}
}

func (s *Session) handleSteal(params map[string]any) (bool, string, map[string]any) {
	store, fail := s.resolveStore(params)
	if store == nil {
		return false, fail, nil
	}
	itemID, _ := params["item_id"].(string)
	inv := world.InventoryMap(store)
	item, ok := inv[itemID]
	if !ok {
		return false, fmt.Sprintf("Item %s is not in stock", itemID), nil
	}

	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}

	guards := 0
	for _, e := range s.state.Entities() {
		if e.Type == world.TypeNPC && e.StringProp("job", "") == "guard" &&
			e.DistanceTo(store) < guardWatchRange {
			guards++
		}
	}
	probability := math.Max(0.1, 0.7-0.2*float64(guards))

	if s.rng.Float64() < probability {
		world.RemoveFromInventoryMap(store, itemID)
		world.AppendToInventoryList(agent, item)
		s.state.LogEvent("steal_attempt", map[string]any{
			"agent_id": s.AgentID,
			"store_id": store.ID,
			"item_id":  itemID,
			"success":  true,
		})
		return true, fmt.Sprintf("Stole %s!", item.Name), map[string]any{
			"item":   item.AsMap(),
			"guards": guards,
		}
	}

	health := agent.Health() - stealDamage
	agent.Properties["health"] = health
	s.state.LogEvent("steal_attempt", map[string]any{
		"agent_id": s.AgentID,
		"store_id": store.ID,
		"item_id":  itemID,
		"success":  false,
	})
	if health <= 0 {
		s.status = StatusFailed
		return false, "Eliminated! The theft went badly.", map[string]any{"health": health}
	}
	return false, fmt.Sprintf("Caught stealing! Health: %.0f", health), map[string]any{
		"health": health,
		"guards": guards,
	}
}

func (s *Session) handleTrade(params map[string]any) (bool, string, map[string]any) {
	npc, fail := s.resolveNPC(params, "npc_id")
	if npc == nil {
		return false, fail, nil
	}
	giveID, _ := params["give_item_id"].(string)
	receiveID, _ := params["receive_item_id"].(string)
	if giveID == "" || receiveID == "" {
		return false, "trade requires give_item_id and receive_item_id", nil
	}

	agent := s.agent()
	if agent == nil {
		return false, "Agent not found", nil
	}

	var give world.Item
	found := false
	for _, it := range world.InventoryList(agent) {
		if it.ItemID == giveID {
			give, found = it, true
			break
		}
	}
	if !found {
		return false, fmt.Sprintf("You do not have item %s", giveID), nil
	}
	receive, ok := world.InventoryMap(npc)[receiveID]
	if !ok {
		return false, fmt.Sprintf("%s does not have item %s", npc.StringProp("name", npc.ID), receiveID), nil
	}

	if give.Value < 0.8*receive.Value {
		return false, fmt.Sprintf("Trade rejected: %s is worth less than %s", give.Name, receive.Name), map[string]any{
			"accepted": false,
		}
	}

	world.RemoveFromInventoryList(agent, giveID)
	world.AddToInventoryMap(npc, give)
	world.RemoveFromInventoryMap(npc, receiveID)
	world.AppendToInventoryList(agent, receive)

	s.state.LogEvent("trade", map[string]any{
		"npc_id":          npc.ID,
		"agent_id":        s.AgentID,
		"give_item_id":    giveID,
		"receive_item_id": receiveID,
	})
	return true, fmt.Sprintf("Traded %s for %s", give.Name, receive.Name), map[string]any{
		"accepted": true,
		"received": receive.AsMap(),
	}
}

// handleInteract is the generic fallback for AI-generated entity types.
func (s *Session) handleInteract(params map[string]any) (bool, string, map[string]any) {
	entityID, _ := params["entity_id"].(string)
	e := s.state.Entity(entityID)
	if e == nil {
		return false, fmt.Sprintf("Unknown entity: %s", entityID), nil
	}
	actionType, _ := params["action_type"].(string)

	data := map[string]any{
		"agent_id":    s.AgentID,
		"entity_id":   entityID,
		"action_type": actionType,
	}
	if e.Type == world.TypeNPC {
		data["target_npc_id"] = entityID
	}
	for k, v := range params {
		if k != "entity_id" && k != "action_type" && k != "prompt_summary" {
			data[k] = v
		}
	}
	s.state.LogEvent("interact", data)

	return true, fmt.Sprintf("Interacted with %s", entityID), map[string]any{
		"entity_id":  entityID,
		"type":       e.Type,
		"properties": deepCopy(e.Properties),
	}
}

// complete terminates the session successfully. Caller holds the session
// lock via ProcessAction.
func (s *Session) complete() {
	s.status = StatusCompleted
	now := time.Now()
	s.completedAt = &now
}

// resolveNPC looks up a live NPC referenced by params.
func (s *Session) resolveNPC(params map[string]any, key string) (*world.Entity, string) {
	id, _ := params[key].(string)
	if id == "" {
		return nil, fmt.Sprintf("%s is required", key)
	}
	e := s.state.Entity(id)
	if e == nil || e.Type != world.TypeNPC {
		return nil, fmt.Sprintf("Unknown NPC: %s", id)
	}
	return e, ""
}

// resolveStore looks up a store referenced by params.
func (s *Session) resolveStore(params map[string]any) (*world.Entity, string) {
	id, _ := params["store_id"].(string)
	if id == "" {
		return nil, "store_id is required"
	}
	e := s.state.Entity(id)
	if e == nil || e.Type != world.TypeStore {
		return nil, fmt.Sprintf("Unknown store: %s", id)
	}
	return e, ""
}

func dist(x1, y1, x2, y2 float64) float64 {
	dx := x1 - x2
	dy := y1 - y2
	return math.Sqrt(dx*dx + dy*dy)
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if v, ok := floatValue(params[key]); ok {
		return v
	}
	return fallback
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			out[k] = deepCopy(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
