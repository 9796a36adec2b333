package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d-andres/AgenticRealm/pkg/game"
	"github.com/d-andres/AgenticRealm/pkg/scenario"
)

type gameStartRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
	AgentID    string `json:"agent_id" binding:"required"`
}

type actionRequest struct {
	Action        string         `json:"action" binding:"required"`
	Params        map[string]any `json:"params"`
	PromptSummary string         `json:"prompt_summary"`
}

func (s *Server) startGame(c *gin.Context) {
	var req gameStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.agents.Exists(req.AgentID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	t, ok := scenario.GetTemplate(req.ScenarioID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scenario not found"})
		return
	}

	session := s.sessions.Create(t, req.AgentID, nil, "")
	session.Begin()

	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) getGame(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("game_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, session.Snapshot())
}

func (s *Server) gameAction(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("game_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	s.processAction(c, session)
}

// processAction parses one action request and runs it synchronously. NPC
// reactions happen later on the tick loop; this response never waits on AI.
func (s *Server) processAction(c *gin.Context, session *game.Session) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	if req.PromptSummary != "" {
		params["prompt_summary"] = req.PromptSummary
	}

	success, message, update := session.ProcessAction(req.Action, params)
	c.JSON(http.StatusOK, gin.H{
		"success":      success,
		"message":      message,
		"state_update": update,
		"turn":         session.Turn(),
	})
}

func (s *Server) endGame(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("game_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	session.End()
	result := session.Result()
	s.agents.RecordResult(session.AgentID, result.Success)
	c.JSON(http.StatusOK, result)
}

func (s *Server) gameResult(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("game_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, session.Result())
}
