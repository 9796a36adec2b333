// Package api exposes the HTTP surface: player agent registration,
// scenario templates and instances, game sessions, system AI agent
// management, and the public feed.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d-andres/AgenticRealm/pkg/aiagents"
	"github.com/d-andres/AgenticRealm/pkg/game"
	"github.com/d-andres/AgenticRealm/pkg/scenario"
	"github.com/d-andres/AgenticRealm/pkg/store"
)

// Server wires the HTTP handlers to the domain components.
type Server struct {
	agents     *store.AgentStore
	feed       *store.Feed
	registry   *scenario.Registry
	generator  *scenario.Generator
	sessions   *game.Manager
	pool       *aiagents.Pool
	adminToken string
}

// NewServer creates the API server.
func NewServer(
	agents *store.AgentStore,
	feed *store.Feed,
	registry *scenario.Registry,
	generator *scenario.Generator,
	sessions *game.Manager,
	pool *aiagents.Pool,
	adminToken string,
) *Server {
	return &Server{
		agents:     agents,
		feed:       feed,
		registry:   registry,
		generator:  generator,
		sessions:   sessions,
		pool:       pool,
		adminToken: adminToken,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")

	agents := v1.Group("/agents")
	{
		agents.POST("/register", s.registerAgent)
		agents.GET("", s.listAgents)
		agents.GET("/:agent_id", s.getAgent)
	}

	scenarios := v1.Group("/scenarios")
	{
		scenarios.GET("", s.listScenarios)
		scenarios.GET("/instances", s.listInstances)
		scenarios.GET("/instances/:instance_id", s.getInstance)
		scenarios.POST("/instances/:instance_id/stop", s.adminRequired(), s.stopInstance)
		scenarios.DELETE("/instances/:instance_id", s.adminRequired(), s.deleteInstance)
		scenarios.POST("/instances/:instance_id/join", s.joinInstance)
		scenarios.POST("/instances/:instance_id/action", s.instanceAction)
		scenarios.GET("/:scenario_id", s.getScenario)
		scenarios.POST("/:scenario_id/instances", s.createInstance)
	}

	games := v1.Group("/games")
	{
		games.POST("/start", s.startGame)
		games.GET("/:game_id", s.getGame)
		games.POST("/:game_id/action", s.gameAction)
		games.POST("/:game_id/end", s.endGame)
		games.GET("/:game_id/result", s.gameResult)
	}

	ai := v1.Group("/ai-agents")
	{
		ai.POST("/register", s.registerAIAgent)
		ai.POST("/unregister/:agent_name", s.unregisterAIAgent)
		ai.GET("/list", s.listAIAgents)
		ai.GET("/status/:agent_name", s.aiAgentStatus)
		ai.GET("/health", s.aiAgentHealth)
		ai.POST("/request/:role/:action", s.aiAgentRequest)
	}

	v1.GET("/feed", s.getFeed)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"instances": len(s.registry.List()),
	})
}

// adminRequired rejects requests without the configured x-admin-token.
func (s *Server) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("x-admin-token") != s.adminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
