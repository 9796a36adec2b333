package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/d-andres/AgenticRealm/pkg/events"
)

// Registry errors surfaced to the API layer.
var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnknownInstance = errors.New("unknown instance")
)

// Store persists instance records. The database package provides the sqlite
// implementation; tests may pass nil to run memory-only.
type Store interface {
	SaveInstance(rec Record) error
	LoadInstance(instanceID string) (Record, bool, error)
	ListInstances(activeOnly bool) ([]Record, error)
	DeleteInstance(instanceID string) error
	MarkInstanceInactive(instanceID string) error
}

// Registry owns every instance in the process. The scheduler holds it by
// reference and only ever reads.
type Registry struct {
	bus   *events.Bus
	store Store

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewRegistry creates an empty registry. store may be nil.
func NewRegistry(bus *events.Bus, store Store) *Registry {
	return &Registry{
		bus:       bus,
		store:     store,
		instances: make(map[string]*Instance),
	}
}

// LoadPersisted restores previously active instances from the store.
func (r *Registry) LoadPersisted() error {
	if r.store == nil {
		return nil
	}
	recs, err := r.store.ListInstances(true)
	if err != nil {
		return fmt.Errorf("loading persisted instances: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		inst := FromRecord(rec, r.bus)
		r.instances[inst.InstanceID] = inst
	}
	slog.Info("Restored persisted instances", "count", len(recs))
	return nil
}

// Create makes a new instance in the generating state. The caller launches
// the generator; the registry only tracks the instance.
func (r *Registry) Create(scenarioID string) (*Instance, error) {
	t, ok := GetTemplate(scenarioID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, scenarioID)
	}
	inst := NewInstance(t, r.bus)

	r.mu.Lock()
	r.instances[inst.InstanceID] = inst
	r.mu.Unlock()

	r.persist(inst)
	slog.Info("Created instance", "instance_id", inst.InstanceID, "scenario_id", scenarioID)
	return inst, nil
}

// Get returns an instance, falling back to the store for instances that
// predate this process.
func (r *Registry) Get(instanceID string) (*Instance, bool) {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	r.mu.Unlock()
	if ok {
		return inst, true
	}

	if r.store == nil {
		return nil, false
	}
	rec, found, err := r.store.LoadInstance(instanceID)
	if err != nil || !found {
		return nil, false
	}
	inst = FromRecord(rec, r.bus)
	r.mu.Lock()
	if existing, ok := r.instances[instanceID]; ok {
		inst = existing
	} else {
		r.instances[instanceID] = inst
	}
	r.mu.Unlock()
	return inst, true
}

// List returns all tracked instances, newest first.
func (r *Registry) List() []*Instance {
	r.mu.Lock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stop transitions an instance to stopped. The scheduler drops it and
// clears its event queue on its next observation.
func (r *Registry) Stop(instanceID string) error {
	inst, ok := r.Get(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	inst.SetStatus(StatusStopped)
	r.persist(inst)
	if r.store != nil {
		if err := r.store.MarkInstanceInactive(instanceID); err != nil {
			slog.Warn("Failed to mark instance inactive", "instance_id", instanceID, "error", err)
		}
	}
	slog.Info("Stopped instance", "instance_id", instanceID)
	return nil
}

// Delete removes an instance and discards its queued events.
func (r *Registry) Delete(instanceID string) error {
	r.mu.Lock()
	_, ok := r.instances[instanceID]
	delete(r.instances, instanceID)
	r.mu.Unlock()

	r.bus.ClearInstance(instanceID)
	if r.store != nil {
		if err := r.store.DeleteInstance(instanceID); err != nil {
			slog.Warn("Failed to delete persisted instance", "instance_id", instanceID, "error", err)
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	slog.Info("Deleted instance", "instance_id", instanceID)
	return nil
}

// Persist saves the instance record, tolerating store failures.
func (r *Registry) Persist(inst *Instance) { r.persist(inst) }

func (r *Registry) persist(inst *Instance) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveInstance(inst.ToRecord()); err != nil {
		slog.Warn("Failed to persist instance", "instance_id", inst.InstanceID, "error", err)
	}
}
