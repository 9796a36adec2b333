package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerAgentRequest struct {
	Name         string         `json:"name" binding:"required"`
	Description  string         `json:"description"`
	Creator      string         `json:"creator"`
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	Skills       map[string]int `json:"skills"`
}

func (s *Server) registerAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agent := s.agents.Register(req.Name, req.Description, req.Creator, req.Model, req.SystemPrompt, req.Skills)
	c.JSON(http.StatusOK, agent)
}

func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.agents.All()})
}

func (s *Server) getAgent(c *gin.Context) {
	agent, ok := s.agents.Get(c.Param("agent_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, agent)
}
