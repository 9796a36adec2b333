// Package aiagents manages the LLM-backed system workers that drive NPC
// behaviour and world generation. Workers register under a role and the
// pool routes requests to them round-robin; a slow worker never blocks
// dispatch to another role.
package aiagents

import "context"

// Role is a named capability workers register under.
type Role string

// Roles dispatched by the engine.
const (
	RoleScenarioGenerator Role = "scenario_generator"
	RoleNPCAdmin          Role = "npc_admin"
)

// ParseRole validates a role string from the API.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleScenarioGenerator, RoleNPCAdmin:
		return Role(s), true
	}
	return "", false
}

// Request is one unit of work routed to a worker.
type Request struct {
	Role      Role           `json:"role"`
	Action    string         `json:"action"`
	Context   map[string]any `json:"context"`
	RequestID string         `json:"request_id"`
	Priority  string         `json:"priority"` // advisory only
}

// Response is a worker's reply. Success=false carries the failure reason
// in Result["error"]; workers never panic across this boundary.
type Response struct {
	RequestID string         `json:"request_id"`
	Role      Role           `json:"role"`
	Action    string         `json:"action"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// Worker is the capability set every LLM worker implements. Providers are
// plain values; no shared base type is needed.
type Worker interface {
	Name() string
	Role() Role
	Connected() bool

	// Connect validates provider credentials. Called once at registration.
	Connect(ctx context.Context) error
	// Disconnect releases the worker. Called on unregister and shutdown.
	Disconnect(ctx context.Context) error

	// HandleRequest performs one action. Implementations return an error
	// only for transport-level failures; domain-level failures go into a
	// Success=false response.
	HandleRequest(ctx context.Context, req Request) (Response, error)
}

// WorkerStatus is a diagnostic snapshot of one registered worker.
type WorkerStatus struct {
	Name      string `json:"agent_name"`
	Role      Role   `json:"agent_role"`
	Connected bool   `json:"is_connected"`
}

// PoolHealth summarises the pool for the health endpoint.
type PoolHealth struct {
	Status       string       `json:"pool_status"`
	Total        int          `json:"total_agents"`
	Connected    int          `json:"connected_agents"`
	Disconnected int          `json:"disconnected_agents"`
	ByRole       map[Role]int `json:"agents_by_role"`
}
