// Package engine runs the simulation tick loop. Each tick drains queued
// player events, fans out timeout-capped NPC reaction calls, and
// periodically wakes idle NPCs. All LLM dispatches are spawned and never
// awaited, so a tick completes in bounded time regardless of worker
// latency.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
	"github.com/d-andres/AgenticRealm/pkg/events"
	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// ErrAlreadyRunning is returned when Start is called twice.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Config controls scheduler timing.
type Config struct {
	TickRate     time.Duration // interval between ticks
	IdleInterval int           // autonomous phase fires every N ticks
	AITimeout    time.Duration // per-dispatch deadline
}

// Scheduler drives every active instance. It holds the registry by
// reference and never owns instances.
type Scheduler struct {
	cfg      Config
	registry *scenario.Registry
	bus      *events.Bus
	pool     *aiagents.Pool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	tick int64
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg Config, registry *scenario.Registry, bus *events.Bus, pool *aiagents.Pool) *Scheduler {
	if cfg.TickRate <= 0 {
		cfg.TickRate = time.Second
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = 30
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 8 * time.Second
	}
	return &Scheduler{
		cfg:      cfg,
		registry: registry,
		bus:      bus,
		pool:     pool,
	}
}

// Start spawns the tick loop. The context bounds spawned NPC dispatches;
// cancelling it does not stop the loop, Stop does.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx)
	slog.Info("Scheduler started",
		"tick_rate", s.cfg.TickRate, "idle_interval", s.cfg.IdleInterval)
	return nil
}

// Stop signals the loop and waits for it to exit. In-flight NPC dispatches
// are not cancelled; they complete or time out on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler iteration. Exported so tests can step the
// scheduler without the timer.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tick++

	instances := s.registry.List()

	// Queues of stopped instances are discarded, including events that
	// raced in after the stop.
	known := make(map[string]bool, len(instances))
	var active []*scenario.Instance
	for _, inst := range instances {
		known[inst.InstanceID] = true
		switch inst.Status() {
		case scenario.StatusStopped:
			s.bus.ClearInstance(inst.InstanceID)
		case scenario.StatusActive:
			active = append(active, inst)
		}
	}

	// An action in flight during Delete can publish after the registry
	// entry is gone; those orphan queues are swept here.
	for id := range s.bus.AllPending() {
		if !known[id] {
			s.bus.ClearInstance(id)
		}
	}

	if !s.pool.HasWorkers(aiagents.RoleNPCAdmin) {
		return
	}

	autonomous := s.tick%int64(s.cfg.IdleInterval) == 0
	for _, inst := range active {
		s.tickInstance(ctx, inst, autonomous)
	}
}

// tickInstance runs both phases for one instance. A panic here must not
// take down the loop or starve the other instances.
func (s *Scheduler) tickInstance(ctx context.Context, inst *scenario.Instance, autonomous bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tick panic, skipping instance",
				"instance_id", inst.InstanceID, "panic", r)
		}
	}()

	covered := s.reactionPhase(ctx, inst)
	if autonomous {
		s.autonomousPhase(ctx, inst, covered)
	}
}

// reactionPhase drains the instance queue, batches events per NPC and
// spawns one dispatch per reacting NPC. Returns the set of NPC ids that
// received a dispatch.
func (s *Scheduler) reactionPhase(ctx context.Context, inst *scenario.Instance) map[string]bool {
	covered := make(map[string]bool)
	drained := s.bus.DrainInstance(inst.InstanceID)
	if len(drained) == 0 {
		return covered
	}

	// Group per NPC, preserving publish order within each batch.
	batches := make(map[string][]events.GameEvent)
	var order []string
	st := inst.State
	st.Lock()
	for _, ev := range drained {
		npcID := eventNPC(ev)
		if npcID == "" {
			continue
		}
		e := st.Entity(npcID)
		if e == nil || e.Type != world.TypeNPC {
			continue
		}
		if _, seen := batches[npcID]; !seen {
			order = append(order, npcID)
		}
		batches[npcID] = append(batches[npcID], ev)
	}

	contexts := make(map[string]map[string]any, len(order))
	for _, npcID := range order {
		contexts[npcID] = npcContext(st, inst.InstanceID, npcID, batches[npcID])
	}
	st.Unlock()

	for _, npcID := range order {
		covered[npcID] = true
		s.dispatch(ctx, inst, npcID, "npc_reaction", contexts[npcID])
	}
	return covered
}

// autonomousPhase wakes every NPC not covered by the reaction phase.
func (s *Scheduler) autonomousPhase(ctx context.Context, inst *scenario.Instance, covered map[string]bool) {
	st := inst.State
	st.Lock()
	var idle []string
	contexts := make(map[string]map[string]any)
	for _, e := range st.Entities() {
		if e.Type != world.TypeNPC || covered[e.ID] {
			continue
		}
		idle = append(idle, e.ID)
		contexts[e.ID] = npcContext(st, inst.InstanceID, e.ID, nil)
	}
	st.Unlock()

	for _, npcID := range idle {
		s.dispatch(ctx, inst, npcID, "npc_idle", contexts[npcID])
	}
}

// dispatch spawns one unawaited NPC call under the per-call deadline.
// Timeouts and errors are dropped silently; the player-visible outcome was
// already returned on the action path.
func (s *Scheduler) dispatch(ctx context.Context, inst *scenario.Instance, npcID, action string, reqCtx map[string]any) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("NPC dispatch panic",
					"instance_id", inst.InstanceID, "npc_id", npcID, "panic", r)
			}
		}()

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.AITimeout)
		defer cancel()

		resp := s.pool.Request(callCtx, aiagents.RoleNPCAdmin, action, reqCtx, "normal")
		if resp == nil || !resp.Success {
			return
		}
		applyNPCUpdate(inst.State, npcID, resp.Result)
	}()
}

// npcContext builds the request context for one NPC. Caller holds the
// state lock.
func npcContext(st *world.State, instanceID, npcID string, batch []events.GameEvent) map[string]any {
	e := st.Entity(npcID)
	reqCtx := map[string]any{
		"instance_id": instanceID,
		"npc_id":      npcID,
		"world_turn":  st.Turn,
	}
	if e != nil {
		reqCtx["npc_name"] = e.StringProp("name", npcID)
		reqCtx["npc_job"] = e.StringProp("job", "")
		reqCtx["npc_personality"] = e.StringProp("personality", "")
		reqCtx["npc_trust"] = e.Trust()
		reqCtx["npc_mood"] = e.StringProp("mood", "neutral")
	}
	if len(batch) > 0 {
		evs := make([]map[string]any, len(batch))
		for i, ev := range batch {
			evs[i] = map[string]any{"type": ev.EventType, "data": ev.Data}
		}
		reqCtx["events"] = evs
	}
	return reqCtx
}

// eventNPC resolves the NPC an event targets, if any.
func eventNPC(ev events.GameEvent) string {
	if id, ok := ev.Data["npc_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := ev.Data["target_npc_id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// applyNPCUpdate writes a worker's partial update onto the NPC under the
// state lock. Recognized keys only; the rest of the reply is ignored.
// Updates from concurrent calls interleave last-writer-wins per property.
func applyNPCUpdate(st *world.State, npcID string, update map[string]any) {
	st.Lock()
	defer st.Unlock()

	e := st.Entity(npcID)
	if e == nil || e.Type != world.TypeNPC {
		return
	}

	if delta, ok := floatValue(update["trust_delta"]); ok {
		trust := e.Trust() + delta
		if trust < 0 {
			trust = 0
		}
		if trust > 1 {
			trust = 1
		}
		e.Properties["trust"] = trust
	}
	if mood, ok := update["mood"].(string); ok && mood != "" {
		e.Properties["mood"] = mood
	}
	if msg, ok := update["last_ai_message"].(string); ok && msg != "" {
		e.Properties["last_ai_message"] = msg
	}
	if target, ok := update["patrol_target"].(string); ok && target != "" {
		e.Properties["patrol_target"] = target
	}
	if delta, ok := floatValue(update["health_delta"]); ok {
		health := e.Health() + delta
		if health < 0 {
			health = 0
		}
		if health > 100 {
			health = 100
		}
		e.Properties["health"] = health
	}
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
