package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// Generator populates freshly created instances. It asks the
// scenario_generator role for stores, NPCs, items and a target item; when
// any step fails it falls back to a deterministic built-in population so
// the instance always reaches active.
type Generator struct {
	pool     *aiagents.Pool
	registry *Registry

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. rng is the randomness source for entity
// placement; inject a seeded source in tests.
func NewGenerator(pool *aiagents.Pool, registry *Registry, rng *rand.Rand) *Generator {
	return &Generator{pool: pool, registry: registry, rng: rng}
}

// Populate fills the instance world and transitions it to active. Intended
// to run as a background goroutine; it never returns an error to the
// creation request, which has already been answered.
func (g *Generator) Populate(ctx context.Context, inst *Instance) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Generator panic", "instance_id", inst.InstanceID, "panic", r)
			g.fallback(inst, fmt.Sprintf("generator panic: %v", r))
		}
		inst.SetStatus(StatusActive)
		g.registry.Persist(inst)
		slog.Info("Instance active", "instance_id", inst.InstanceID, "scenario_id", inst.ScenarioID)
	}()

	t := inst.Template
	if t == nil || !t.Generated {
		return
	}

	if err := g.generate(ctx, inst); err != nil {
		slog.Warn("AI generation failed, using fallback population",
			"instance_id", inst.InstanceID, "error", err)
		g.fallback(inst, err.Error())
	}
}

func (g *Generator) generate(ctx context.Context, inst *Instance) error {
	t := inst.Template

	stores, err := g.requestList(ctx, inst, "generate_stores", "stores", map[string]any{
		"num_stores": g.between(t.NumStores),
		"themes":     t.EnvironmentThemes,
	})
	if err != nil {
		return err
	}
	npcs, err := g.requestList(ctx, inst, "generate_npcs", "npcs", map[string]any{
		"num_npcs": g.between(t.NumNPCs),
		"themes":   t.EnvironmentThemes,
		"jobs":     t.PossibleNPCJobs,
	})
	if err != nil {
		return err
	}
	items, err := g.requestList(ctx, inst, "generate_items", "items", map[string]any{
		"num_items": g.between(t.NumItems),
	})
	if err != nil {
		return err
	}

	objective := ""
	if len(t.Objectives) > 0 {
		objective = t.Objectives[0]
	}
	resp := g.pool.Request(ctx, aiagents.RoleScenarioGenerator, "generate_target_item",
		map[string]any{"objective": objective}, "high")
	if resp == nil || !resp.Success {
		return fmt.Errorf("generate_target_item failed")
	}
	target, ok := resp.Result["target_item"].(map[string]any)
	if !ok {
		return fmt.Errorf("generate_target_item returned no item")
	}

	g.place(inst, stores, npcs, items, target)
	return nil
}

// requestList runs one generation action and extracts the named array from
// the response.
func (g *Generator) requestList(ctx context.Context, inst *Instance, action, key string, reqCtx map[string]any) ([]map[string]any, error) {
	reqCtx["instance_id"] = inst.InstanceID
	resp := g.pool.Request(ctx, aiagents.RoleScenarioGenerator, action, reqCtx, "high")
	if resp == nil {
		return nil, fmt.Errorf("%s: no scenario_generator worker registered", action)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s: %v", action, resp.Result["error"])
	}
	raw, ok := resp.Result[key]
	if !ok {
		return nil, fmt.Errorf("%s: missing %s in result", action, key)
	}
	return normalizeList(raw)
}

// place writes the generated population into the world under one lock.
func (g *Generator) place(inst *Instance, stores, npcs, items []map[string]any, target map[string]any) {
	st := inst.State
	st.Lock()
	defer st.Unlock()

	w, h := st.Bounds()
	var storeIDs []string
	for i, s := range stores {
		id := stringField(s, "store_id", fmt.Sprintf("store_%d", i+1))
		props := map[string]any{
			"name":                   stringField(s, "name", id),
			"proprietor":             stringField(s, "proprietor", "Unknown"),
			"proprietor_personality": stringField(s, "proprietor_personality", ""),
			"store_type":             stringField(s, "store_type", "general"),
			"pricing_multiplier":     floatField(s, "pricing_multiplier", 1.0),
			"inventory":              map[string]any{},
		}
		x, y := g.position(w, h)
		st.AddEntity(world.NewEntity(id, world.TypeStore, x, y, props))
		storeIDs = append(storeIDs, id)
	}

	for i, n := range npcs {
		id := stringField(n, "npc_id", fmt.Sprintf("npc_%d", i+1))
		props := map[string]any{
			"name":        stringField(n, "name", id),
			"job":         stringField(n, "job", "merchant"),
			"personality": stringField(n, "personality", ""),
			"trust":       floatField(n, "initial_trust", 0.5),
			"mood":        "neutral",
			"inventory":   map[string]any{},
		}
		x, y := g.position(w, h)
		st.AddEntity(world.NewEntity(id, world.TypeNPC, x, y, props))
	}

	// Distribute items round-robin across store inventories.
	if len(storeIDs) > 0 {
		for i, raw := range items {
			it, ok := world.ItemFromAny(raw)
			if !ok {
				continue
			}
			store := st.Entity(storeIDs[i%len(storeIDs)])
			world.AddToInventoryMap(store, it)
		}
		if it, ok := world.ItemFromAny(target); ok {
			home := st.Entity(g.targetStore(st, storeIDs, target))
			world.AddToInventoryMap(home, it)
			st.Properties["target_item_id"] = it.ItemID
		}
	}

	st.LogEvent("world_generated", map[string]any{
		"stores": len(stores), "npcs": len(npcs), "items": len(items),
	})
}

// targetStore matches the model's location hint against store names, else
// picks a random store.
func (g *Generator) targetStore(st *world.State, storeIDs []string, target map[string]any) string {
	if loc, ok := target["location"].(string); ok && loc != "" {
		for _, id := range storeIDs {
			e := st.Entity(id)
			if e != nil && (e.StringProp("name", "") == loc || id == loc) {
				return id
			}
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return storeIDs[g.rng.Intn(len(storeIDs))]
}

// fallback places a small deterministic population and records the failure.
func (g *Generator) fallback(inst *Instance, reason string) {
	st := inst.State
	st.Lock()
	defer st.Unlock()

	if st.Entity("store_general") != nil {
		return
	}

	general := world.NewEntity("store_general", world.TypeStore, 200, 200, map[string]any{
		"name":               "General Goods",
		"proprietor":         "Mira",
		"store_type":         "general",
		"pricing_multiplier": 1.0,
		"inventory":          map[string]any{},
	})
	curio := world.NewEntity("store_curio", world.TypeStore, 600, 400, map[string]any{
		"name":               "Curio Cabinet",
		"proprietor":         "Aldous",
		"store_type":         "rare",
		"pricing_multiplier": 1.5,
		"inventory":          map[string]any{},
	})
	st.AddEntity(general)
	st.AddEntity(curio)

	st.AddEntity(world.NewEntity("npc_guard", world.TypeNPC, 400, 200, map[string]any{
		"name": "Bren", "job": "guard", "personality": "dutiful",
		"trust": 0.5, "mood": "neutral", "inventory": map[string]any{},
	}))
	st.AddEntity(world.NewEntity("npc_merchant", world.TypeNPC, 300, 450, map[string]any{
		"name": "Sela", "job": "merchant", "personality": "shrewd",
		"trust": 0.5, "mood": "neutral", "inventory": map[string]any{},
	}))

	world.AddToInventoryMap(general, world.Item{ItemID: "item_rope", Name: "Rope", Value: 15, Rarity: "common", Tradeable: true})
	world.AddToInventoryMap(general, world.Item{ItemID: "item_lantern", Name: "Lantern", Value: 40, Rarity: "common", Tradeable: true})
	target := world.Item{ItemID: "item_sunstone", Name: "Sunstone Amulet", Value: 1200, Rarity: "legendary", Tradeable: true}
	world.AddToInventoryMap(curio, target)
	st.Properties["target_item_id"] = target.ItemID

	st.LogEvent("generation_failed", map[string]any{"reason": reason, "fallback": true})
}

// between picks a count inside an inclusive [min,max] range.
func (g *Generator) between(r [2]int) int {
	lo, hi := r[0], r[1]
	if hi <= lo {
		return lo
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Intn(hi-lo+1)
}

// position picks a placement point away from the world edges.
func (g *Generator) position(w, h float64) (float64, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	margin := 50.0
	return margin + g.rng.Float64()*(w-2*margin), margin + g.rng.Float64()*(h-2*margin)
}

func normalizeList(raw any) ([]map[string]any, error) {
	switch v := raw.(type) {
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected list shape %T", raw)
}

func stringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}
