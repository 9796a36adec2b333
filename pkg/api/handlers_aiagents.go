package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
)

type aiAgentRegistration struct {
	AgentName string            `json:"agent_name" binding:"required"`
	AgentRole string            `json:"agent_role" binding:"required"`
	AgentType string            `json:"agent_type" binding:"required"`
	Config    map[string]string `json:"config"`
}

// newWorker builds a provider worker for a validated (type, role) pair.
func newWorker(req aiAgentRegistration) (aiagents.Worker, error) {
	role, ok := aiagents.ParseRole(req.AgentRole)
	if !ok {
		return nil, fmt.Errorf("unsupported agent_role %q; valid roles: scenario_generator, npc_admin", req.AgentRole)
	}

	agentType := strings.ToLower(req.AgentType)
	if agentType == "gpt" { // legacy alias
		agentType = "openai"
	}
	apiKey := req.Config["api_key"]
	model := req.Config["model"]

	switch agentType {
	case "openai":
		return aiagents.NewOpenAIWorker(req.AgentName, role, apiKey, model), nil
	case "anthropic":
		return aiagents.NewAnthropicWorker(req.AgentName, role, apiKey, model), nil
	}
	return nil, fmt.Errorf("unsupported agent_type %q; valid types: openai, anthropic", req.AgentType)
}

func (s *Server) registerAIAgent(c *gin.Context) {
	var req aiAgentRegistration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker, err := newWorker(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.pool.Register(c.Request.Context(), worker); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"agent_name": req.AgentName,
		"agent_role": req.AgentRole,
		"message":    fmt.Sprintf("Agent %s registered and connected", req.AgentName),
	})
}

func (s *Server) unregisterAIAgent(c *gin.Context) {
	name := c.Param("agent_name")
	if err := s.pool.Unregister(c.Request.Context(), name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"agent_name": name,
		"message":    fmt.Sprintf("Agent %s unregistered and disconnected", name),
	})
}

func (s *Server) listAIAgents(c *gin.Context) {
	workers := s.pool.Workers()
	c.JSON(http.StatusOK, gin.H{
		"agents":       workers,
		"total_agents": len(workers),
	})
}

func (s *Server) aiAgentStatus(c *gin.Context) {
	status, ok := s.pool.WorkerByName(c.Param("agent_name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) aiAgentHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.pool.Health())
}

// aiAgentRequest dispatches one ad-hoc action to a role, mainly for
// diagnostics and manual world seeding.
func (s *Server) aiAgentRequest(c *gin.Context) {
	role, ok := aiagents.ParseRole(c.Param("role"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role"})
		return
	}

	var body struct {
		Context map[string]any `json:"context"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	resp := s.pool.Request(ctx, role, c.Param("action"), body.Context, "normal")
	if resp == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No worker registered for role"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
