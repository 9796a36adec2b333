package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
	"github.com/d-andres/AgenticRealm/pkg/events"
	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/world"
)

// stubWorker is an in-process npc_admin that records every request it sees.
type stubWorker struct {
	result map[string]any
	block  bool // wait for ctx cancellation instead of answering

	mu       sync.Mutex
	requests []aiagents.Request
}

func (w *stubWorker) Name() string                        { return "stub" }
func (w *stubWorker) Role() aiagents.Role                 { return aiagents.RoleNPCAdmin }
func (w *stubWorker) Connected() bool                     { return true }
func (w *stubWorker) Connect(ctx context.Context) error   { return nil }
func (w *stubWorker) Disconnect(ctx context.Context) error { return nil }

func (w *stubWorker) HandleRequest(ctx context.Context, req aiagents.Request) (aiagents.Response, error) {
	w.mu.Lock()
	w.requests = append(w.requests, req)
	w.mu.Unlock()

	if w.block {
		<-ctx.Done()
		return aiagents.Response{}, errors.New("deadline exceeded")
	}
	return aiagents.Response{
		RequestID: req.RequestID,
		Role:      req.Role,
		Action:    req.Action,
		Success:   true,
		Result:    w.result,
	}, nil
}

func (w *stubWorker) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}

func (w *stubWorker) actionsSeen() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.requests))
	for i, r := range w.requests {
		out[i] = r.Action
	}
	return out
}

type fixture struct {
	bus       *events.Bus
	registry  *scenario.Registry
	pool      *aiagents.Pool
	scheduler *Scheduler
	worker    *stubWorker
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	bus := events.NewBus()
	registry := scenario.NewRegistry(bus, nil)
	pool := aiagents.NewPool()
	return &fixture{
		bus:       bus,
		registry:  registry,
		pool:      pool,
		scheduler: NewScheduler(cfg, registry, bus, pool),
	}
}

func (f *fixture) registerWorker(t *testing.T, w *stubWorker) {
	t.Helper()
	f.worker = w
	require.NoError(t, f.pool.Register(context.Background(), w))
}

// activeInstance creates an active instance populated with three NPCs and
// drains the setup noise off the bus.
func (f *fixture) activeInstance(t *testing.T) *scenario.Instance {
	t.Helper()
	inst, err := f.registry.Create("market_square")
	require.NoError(t, err)
	inst.SetStatus(scenario.StatusActive)

	st := inst.State
	st.Lock()
	for _, id := range []string{"npc_a", "npc_b", "npc_c"} {
		st.AddEntity(world.NewEntity(id, world.TypeNPC, 100, 100, map[string]any{
			"name":  id,
			"trust": 0.5,
		}))
	}
	st.Unlock()

	f.bus.DrainInstance(inst.InstanceID)
	return inst
}

func trustOf(inst *scenario.Instance, npcID string) float64 {
	st := inst.State
	st.Lock()
	defer st.Unlock()
	return st.Entity(npcID).Trust()
}

func TestReactionPhaseFansOutPerNPC(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{"trust_delta": 0.1}})
	inst := f.activeInstance(t)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a", "message": "hello"},
	})
	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "negotiate",
		Data: map[string]any{"target_npc_id": "npc_b"},
	})

	f.scheduler.Tick(context.Background())

	assert.Eventually(t, func() bool {
		return f.worker.callCount() == 2 &&
			trustOf(inst, "npc_a") == 0.6 &&
			trustOf(inst, "npc_b") == 0.6
	}, time.Second, 5*time.Millisecond)

	// The bystander got no dispatch.
	assert.Equal(t, 0.5, trustOf(inst, "npc_c"))
	for _, action := range f.worker.actionsSeen() {
		assert.Equal(t, "npc_reaction", action)
	}
}

func TestReactionBatchesEventsPerNPC(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})
	inst := f.activeInstance(t)

	for i := 0; i < 3; i++ {
		f.bus.Publish(events.GameEvent{
			InstanceID: inst.InstanceID, EventType: "talk",
			Data: map[string]any{"npc_id": "npc_a"},
		})
	}

	f.scheduler.Tick(context.Background())

	assert.Eventually(t, func() bool {
		return f.worker.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	f.worker.mu.Lock()
	evs := f.worker.requests[0].Context["events"].([]map[string]any)
	f.worker.mu.Unlock()
	assert.Len(t, evs, 3)
}

func TestEventsTargetingNonNPCsAreDiscarded(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})
	inst := f.activeInstance(t)

	st := inst.State
	st.Lock()
	st.AddEntity(world.NewEntity("store_1", world.TypeStore, 50, 50, nil))
	st.Unlock()
	f.bus.DrainInstance(inst.InstanceID)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "buy",
		Data: map[string]any{"npc_id": "store_1"},
	})
	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "system",
		Data: map[string]any{"npc_id": "ghost"},
	})

	f.scheduler.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.worker.callCount())
}

func TestSlowWorkerIsDroppedByTimeout(t *testing.T) {
	f := newFixture(t, Config{AITimeout: 5 * time.Millisecond})
	f.registerWorker(t, &stubWorker{block: true})
	inst := f.activeInstance(t)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())

	assert.Eventually(t, func() bool {
		return f.worker.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0.5, trustOf(inst, "npc_a"))

	// The loop keeps ticking after a dropped dispatch.
	f.scheduler.Tick(context.Background())
}

func TestTickReturnsQuicklyDespiteSlowWorker(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{block: true})
	inst := f.activeInstance(t)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	start := time.Now()
	f.scheduler.Tick(context.Background())
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestNoNPCAdminSkipsAllAIWork(t *testing.T) {
	f := newFixture(t, Config{})
	inst := f.activeInstance(t)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())

	// Events stay queued until a worker shows up.
	assert.Equal(t, 1, f.bus.PendingCount(inst.InstanceID))
}

func TestStoppedInstanceQueueCleared(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})
	inst := f.activeInstance(t)
	require.NoError(t, f.registry.Stop(inst.InstanceID))

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.bus.PendingCount(inst.InstanceID))
	assert.Equal(t, 0, f.worker.callCount())
}

func TestDeletedInstanceQueueCleared(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})
	inst := f.activeInstance(t)
	require.NoError(t, f.registry.Delete(inst.InstanceID))

	// An action in flight during the delete publishes after the registry
	// entry is gone.
	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})
	f.bus.Publish(events.GameEvent{
		InstanceID: "inst-never-existed", EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.bus.PendingCount(inst.InstanceID))
	assert.Equal(t, 0, f.bus.PendingCount("inst-never-existed"))
	assert.Equal(t, 0, f.worker.callCount())
}

func TestGeneratingInstanceSkipped(t *testing.T) {
	f := newFixture(t, Config{AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})

	inst, err := f.registry.Create("market_square")
	require.NoError(t, err)
	f.bus.DrainInstance(inst.InstanceID)

	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, f.worker.callCount())
	assert.Equal(t, 1, f.bus.PendingCount(inst.InstanceID))
}

func TestAutonomousPhaseWakesUncoveredNPCs(t *testing.T) {
	f := newFixture(t, Config{IdleInterval: 1, AITimeout: time.Second})
	f.registerWorker(t, &stubWorker{result: map[string]any{}})
	inst := f.activeInstance(t)

	// npc_a reacts, the other two idle.
	f.bus.Publish(events.GameEvent{
		InstanceID: inst.InstanceID, EventType: "talk",
		Data: map[string]any{"npc_id": "npc_a"},
	})

	f.scheduler.Tick(context.Background())

	assert.Eventually(t, func() bool {
		return f.worker.callCount() == 3
	}, time.Second, 5*time.Millisecond)

	reactions, idles := 0, 0
	for _, action := range f.worker.actionsSeen() {
		switch action {
		case "npc_reaction":
			reactions++
		case "npc_idle":
			idles++
		}
	}
	assert.Equal(t, 1, reactions)
	assert.Equal(t, 2, idles)
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t, Config{TickRate: time.Hour})

	require.NoError(t, f.scheduler.Start(context.Background()))
	assert.True(t, f.scheduler.Running())
	assert.ErrorIs(t, f.scheduler.Start(context.Background()), ErrAlreadyRunning)

	f.scheduler.Stop()
	assert.False(t, f.scheduler.Running())
	// Stop is idempotent.
	f.scheduler.Stop()
}

func TestApplyNPCUpdate(t *testing.T) {
	st := world.NewState("", nil)
	st.Lock()
	st.AddEntity(world.NewEntity("npc_a", world.TypeNPC, 0, 0, map[string]any{
		"trust":  0.5,
		"health": 90.0,
	}))
	st.AddEntity(world.NewEntity("store_1", world.TypeStore, 0, 0, nil))
	st.Unlock()

	applyNPCUpdate(st, "npc_a", map[string]any{
		"trust_delta":     0.9,
		"mood":            "irritated",
		"last_ai_message": "leave me be",
		"patrol_target":   "",
		"health_delta":    50.0,
		"unknown_key":     "ignored",
	})

	st.Lock()
	npc := st.Entity("npc_a")
	assert.Equal(t, 1.0, npc.Properties["trust"])
	assert.Equal(t, "irritated", npc.Properties["mood"])
	assert.Equal(t, "leave me be", npc.Properties["last_ai_message"])
	assert.NotContains(t, npc.Properties, "patrol_target")
	assert.Equal(t, 100.0, npc.Properties["health"])
	assert.NotContains(t, npc.Properties, "unknown_key")
	st.Unlock()

	applyNPCUpdate(st, "npc_a", map[string]any{"trust_delta": -2.0})
	st.Lock()
	assert.Equal(t, 0.0, st.Entity("npc_a").Properties["trust"])
	st.Unlock()

	// Non-NPC and unknown targets are no-ops.
	applyNPCUpdate(st, "store_1", map[string]any{"trust_delta": 0.1})
	applyNPCUpdate(st, "ghost", map[string]any{"trust_delta": 0.1})
	st.Lock()
	assert.NotContains(t, st.Entity("store_1").Properties, "trust")
	st.Unlock()
}
