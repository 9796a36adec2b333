package aiagents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool routes requests to registered workers by role with round-robin load
// balancing. The map and cursors are the only critical section; worker
// calls run outside the lock.
type Pool struct {
	mu      sync.Mutex
	workers map[Role][]Worker
	cursor  map[Role]int
	reqSeq  int64
}

// NewPool creates an empty worker pool.
func NewPool() *Pool {
	return &Pool{
		workers: make(map[Role][]Worker),
		cursor:  make(map[Role]int),
	}
}

// Register connects a worker and adds it to its role's rotation.
func (p *Pool) Register(ctx context.Context, w Worker) error {
	if err := w.Connect(ctx); err != nil {
		return fmt.Errorf("connecting worker %s: %w", w.Name(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.workers[w.Role()]; !ok {
		p.cursor[w.Role()] = 0
	}
	p.workers[w.Role()] = append(p.workers[w.Role()], w)
	slog.Info("Registered AI worker", "name", w.Name(), "role", w.Role())
	return nil
}

// Unregister disconnects the named worker and removes it from its role.
func (p *Pool) Unregister(ctx context.Context, name string) error {
	p.mu.Lock()
	var found Worker
	for role, list := range p.workers {
		for i, w := range list {
			if w.Name() == name {
				found = w
				p.workers[role] = append(list[:i:i], list[i+1:]...)
				if p.cursor[role] >= len(p.workers[role]) {
					p.cursor[role] = 0
				}
				break
			}
		}
		if found != nil {
			break
		}
	}
	p.mu.Unlock()

	if found == nil {
		return fmt.Errorf("worker not found: %s", name)
	}
	if err := found.Disconnect(ctx); err != nil {
		slog.Warn("Worker disconnect failed", "name", name, "error", err)
	}
	slog.Info("Unregistered AI worker", "name", name)
	return nil
}

// Request routes one action to the next worker of the role. Returns nil
// when no worker is registered, which callers treat as "AI disabled".
// Worker errors are surfaced as Success=false responses, never as panics.
func (p *Pool) Request(ctx context.Context, role Role, action string, reqContext map[string]any, priority string) *Response {
	if reqContext == nil {
		reqContext = map[string]any{}
	}

	p.mu.Lock()
	list := p.workers[role]
	if len(list) == 0 {
		p.mu.Unlock()
		return nil
	}
	idx := p.cursor[role] % len(list)
	w := list[idx]
	p.cursor[role] = (idx + 1) % len(list)
	p.reqSeq++
	requestID := fmt.Sprintf("req_%d", p.reqSeq)
	p.mu.Unlock()

	req := Request{
		Role:      role,
		Action:    action,
		Context:   reqContext,
		RequestID: requestID,
		Priority:  priority,
	}
	resp, err := w.HandleRequest(ctx, req)
	if err != nil {
		slog.Warn("AI worker request failed",
			"worker", w.Name(), "role", role, "action", action, "error", err)
		return &Response{
			RequestID: requestID,
			Role:      role,
			Action:    action,
			Success:   false,
			Result:    map[string]any{"error": err.Error()},
		}
	}
	return &resp
}

// Broadcast fans an action out to every worker of a role and collects the
// successful responses; failures are dropped.
func (p *Pool) Broadcast(ctx context.Context, role Role, action string, reqContext map[string]any) []Response {
	if reqContext == nil {
		reqContext = map[string]any{}
	}

	p.mu.Lock()
	list := make([]Worker, len(p.workers[role]))
	copy(list, p.workers[role])
	p.mu.Unlock()

	var (
		wg        sync.WaitGroup
		collectMu sync.Mutex
		out       []Response
	)
	for _, w := range list {
		p.mu.Lock()
		p.reqSeq++
		requestID := fmt.Sprintf("req_%d", p.reqSeq)
		p.mu.Unlock()

		wg.Add(1)
		go func(w Worker, requestID string) {
			defer wg.Done()
			resp, err := w.HandleRequest(ctx, Request{
				Role:      role,
				Action:    action,
				Context:   reqContext,
				RequestID: requestID,
				Priority:  "normal",
			})
			if err != nil {
				slog.Warn("Broadcast request failed", "worker", w.Name(), "error", err)
				return
			}
			collectMu.Lock()
			out = append(out, resp)
			collectMu.Unlock()
		}(w, requestID)
	}
	wg.Wait()
	return out
}

// Workers returns a status snapshot of every registered worker.
func (p *Pool) Workers() []WorkerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []WorkerStatus
	for role, list := range p.workers {
		for _, w := range list {
			out = append(out, WorkerStatus{Name: w.Name(), Role: role, Connected: w.Connected()})
		}
	}
	return out
}

// WorkerByName returns the status of one worker.
func (p *Pool) WorkerByName(name string) (WorkerStatus, bool) {
	for _, st := range p.Workers() {
		if st.Name == name {
			return st, true
		}
	}
	return WorkerStatus{}, false
}

// HasWorkers reports whether any worker is registered for the role.
func (p *Pool) HasWorkers(role Role) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers[role]) > 0
}

// Health summarises the pool state for the health endpoint.
func (p *Pool) Health() PoolHealth {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := PoolHealth{ByRole: make(map[Role]int)}
	for role, list := range p.workers {
		h.ByRole[role] = len(list)
		for _, w := range list {
			h.Total++
			if w.Connected() {
				h.Connected++
			}
		}
	}
	h.Disconnected = h.Total - h.Connected
	if h.Connected > 0 {
		h.Status = "healthy"
	} else {
		h.Status = "no agents"
	}
	return h
}

// Shutdown disconnects every worker and clears the pool.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	var all []Worker
	for _, list := range p.workers {
		all = append(all, list...)
	}
	p.workers = make(map[Role][]Worker)
	p.cursor = make(map[Role]int)
	p.mu.Unlock()

	for _, w := range all {
		if err := w.Disconnect(ctx); err != nil {
			slog.Warn("Worker disconnect failed during shutdown", "name", w.Name(), "error", err)
		}
	}
}
