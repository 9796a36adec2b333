package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d-andres/AgenticRealm/pkg/scenario"
)

type scenarioResponse struct {
	ScenarioID  string   `json:"scenario_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       string   `json:"rules"`
	Objectives  []string `json:"objectives"`
	MaxTurns    int      `json:"max_turns"`
	Difficulty  string   `json:"difficulty"`
}

func templateResponse(t *scenario.Template) scenarioResponse {
	return scenarioResponse{
		ScenarioID:  t.ScenarioID,
		Name:        t.Name,
		Description: t.Description,
		Rules:       t.Rules,
		Objectives:  t.Objectives,
		MaxTurns:    t.MaxTurns,
		Difficulty:  t.Difficulty,
	}
}

func (s *Server) listScenarios(c *gin.Context) {
	out := make([]scenarioResponse, 0)
	for _, t := range scenario.AllTemplates() {
		out = append(out, templateResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getScenario(c *gin.Context) {
	t, ok := scenario.GetTemplate(c.Param("scenario_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scenario not found"})
		return
	}
	c.JSON(http.StatusOK, templateResponse(t))
}

func (s *Server) createInstance(c *gin.Context) {
	inst, err := s.registry.Create(c.Param("scenario_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scenario not found"})
		return
	}

	// World population runs in the background; the instance admits
	// players once it reaches active.
	go s.generator.Populate(context.Background(), inst)

	c.JSON(http.StatusOK, gin.H{
		"instance_id": inst.InstanceID,
		"scenario_id": inst.ScenarioID,
		"status":      inst.Status(),
		"created_at":  inst.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) listInstances(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, inst := range s.registry.List() {
		out = append(out, gin.H{
			"instance_id": inst.InstanceID,
			"scenario_id": inst.ScenarioID,
			"status":      inst.Status(),
			"players":     inst.Players(),
			"created_at":  inst.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getInstance(c *gin.Context) {
	inst, ok := s.registry.Get(c.Param("instance_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return
	}

	inst.State.Lock()
	snap := inst.State.Snapshot()
	inst.State.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"instance_id": inst.InstanceID,
		"scenario_id": inst.ScenarioID,
		"status":      inst.Status(),
		"players":     inst.Players(),
		"created_at":  inst.CreatedAt.Format(time.RFC3339),
		"state":       snap,
	})
}

func (s *Server) stopInstance(c *gin.Context) {
	instanceID := c.Param("instance_id")
	if err := s.registry.Stop(instanceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "stopped": true})
}

func (s *Server) deleteInstance(c *gin.Context) {
	instanceID := c.Param("instance_id")
	s.sessions.DropInstance(instanceID)
	if err := s.registry.Delete(instanceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instance_id": instanceID, "deleted": true})
}

func (s *Server) joinInstance(c *gin.Context) {
	inst, ok := s.registry.Get(c.Param("instance_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
		return
	}
	agentID := c.Query("agent_id")
	if !s.agents.Exists(agentID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	switch inst.Status() {
	case scenario.StatusGenerating:
		c.JSON(http.StatusConflict, gin.H{
			"error": "Instance is still generating; poll its status and retry once active",
		})
		return
	case scenario.StatusStopped:
		c.JSON(http.StatusConflict, gin.H{"error": "Instance is stopped"})
		return
	}
	if inst.Template == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Scenario for this instance is no longer available",
		})
		return
	}

	inst.AddPlayer(agentID)
	s.registry.Persist(inst)

	session, exists := s.sessions.GetByInstanceAgent(inst.InstanceID, agentID)
	if !exists {
		session = s.sessions.Create(inst.Template, agentID, inst.State, inst.InstanceID)
		session.Begin()
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":     session.GameID,
		"instance_id": inst.InstanceID,
		"scenario_id": inst.ScenarioID,
		"agent_id":    agentID,
	})
}

// instanceAction addresses a session by (instance, agent) pair.
func (s *Server) instanceAction(c *gin.Context) {
	instanceID := c.Param("instance_id")
	agentID := c.Query("agent_id")

	session, ok := s.sessions.GetByInstanceAgent(instanceID, agentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No session for this instance and agent; join first"})
		return
	}
	s.processAction(c, session)
}
