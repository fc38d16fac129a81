package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"oddlynews/internal/errtrack"
	"oddlynews/internal/models"
	"oddlynews/internal/service"
)

const defaultHistoryLimit = 10

type AgentService interface {
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, topic string) (*models.Agent, error)
	CreateAgentWithWallet(ctx context.Context, in service.CreateAgentInput) (*service.ProvisionResult, error)
	RetryENS(ctx context.Context, topic string) (*service.ProvisionResult, error)
}

type BriefingGenerator interface {
	Generate(ctx context.Context, agent *models.Agent, force bool) (*service.GenerateResult, error)
}

type BriefingHistory interface {
	History(ctx context.Context, agentID string, limit int) ([]models.Briefing, error)
}

type AgentHandler struct {
	Agents       AgentService
	Generator    BriefingGenerator
	History      BriefingHistory
	Tracker      *errtrack.Tracker
	HistoryLimit int
	Logger       *zap.Logger
}

type briefingView struct {
	ID          string         `json:"id"`
	Script      string         `json:"script"`
	AudioURL    string         `json:"audioUrl"`
	Duration    int            `json:"duration"`
	MarketCount int            `json:"marketCount"`
	MarketStats datatypes.JSON `json:"marketStats" swaggertype:"object"`
	AIInsights  datatypes.JSON `json:"aiInsights" swaggertype:"array,object"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type agentSummary struct {
	Topic        string  `json:"topic"`
	DisplayName  string  `json:"displayName"`
	ENSSubdomain *string `json:"ensSubdomain"`
}

type generateResponse struct {
	Success  bool         `json:"success"`
	Briefing briefingView `json:"briefing"`
	Agent    agentSummary `json:"agent"`
	Cached   bool         `json:"cached,omitempty"`
}

func (h *AgentHandler) Register(r *gin.Engine) {
	group := r.Group("/api/agents")
	group.GET("", h.listAgents)
	group.GET("/:topic", h.getAgent)
	group.GET("/:topic/generate", h.generate)
	group.GET("/:topic/history", h.history)
	group.POST("/:topic/retry-ens", h.retryENS)
	r.POST("/api/create-agent", h.createAgent)
}

// @Summary List active agents
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 500 {object} errorResponse
// @Router /api/agents [get]
func (h *AgentHandler) listAgents(c *gin.Context) {
	agents, err := h.Agents.ListAgents(c.Request.Context())
	if err != nil {
		h.logger().Warn("list agents failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	Ok(c, gin.H{"agents": agents})
}

// @Summary Get one agent
// @Tags agents
// @Produce json
// @Param topic path string true "agent topic"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorResponse
// @Router /api/agents/{topic} [get]
func (h *AgentHandler) getAgent(c *gin.Context) {
	agent, err := h.Agents.GetAgent(c.Request.Context(), c.Param("topic"))
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger().Warn("get agent failed", zap.String("topic", c.Param("topic")), zap.Error(err))
		}
		Error(c, http.StatusNotFound, "Agent not found")
		return
	}
	Ok(c, gin.H{"agent": agent})
}

// @Summary Generate or fetch the latest briefing
// @Description Serves a briefing younger than 30 minutes unless force=true.
// @Tags briefings
// @Produce json
// @Param topic path string true "agent topic"
// @Param force query bool false "skip the cache"
// @Success 200 {object} generateResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /api/agents/{topic}/generate [get]
func (h *AgentHandler) generate(c *gin.Context) {
	ctx := c.Request.Context()
	topic := c.Param("topic")
	force := c.Query("force") == "true"

	agent, err := h.Agents.GetAgent(ctx, topic)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			Error(c, http.StatusNotFound, "Agent not found")
			return
		}
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.Generator.Generate(ctx, agent, force)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoMarketData):
		Error(c, http.StatusNotFound, "No market data found for this topic")
		return
	case errors.Is(err, service.ErrGenerationInProgress):
		Error(c, http.StatusConflict, "generation already in progress")
		return
	default:
		h.logger().Error("pipeline failed", zap.String("topic", topic), zap.Error(err))
		h.capture(c, err, map[string]string{"topic": topic, "route": "generate", "stage": stageOf(err)})
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, generateResponse{
		Success:  true,
		Briefing: newBriefingView(res.Briefing),
		Agent: agentSummary{
			Topic:        agent.Topic,
			DisplayName:  agent.DisplayName,
			ENSSubdomain: agent.ENSSubdomain,
		},
		Cached: res.Cached,
	})
}

// @Summary Recent briefings for an agent
// @Tags briefings
// @Produce json
// @Param topic path string true "agent topic"
// @Success 200 {object} map[string]any
// @Failure 404 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Router /api/agents/{topic}/history [get]
func (h *AgentHandler) history(c *gin.Context) {
	ctx := c.Request.Context()
	agent, err := h.Agents.GetAgent(ctx, c.Param("topic"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			Error(c, http.StatusNotFound, "Agent not found")
			return
		}
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	limit := h.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	items, err := h.History.History(ctx, agent.ID, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	Ok(c, gin.H{"briefings": items})
}

func (h *AgentHandler) capture(c *gin.Context, err error, tags map[string]string) {
	h.Tracker.CaptureError(c.Request.Context(), err, tags)
}

func (h *AgentHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func newBriefingView(b *models.Briefing) briefingView {
	if b == nil {
		return briefingView{}
	}
	return briefingView{
		ID:          b.ID,
		Script:      b.Script,
		AudioURL:    b.AudioURL,
		Duration:    b.AudioDuration,
		MarketCount: b.MarketCount,
		MarketStats: b.MarketStats,
		AIInsights:  b.AIInsights,
		CreatedAt:   b.CreatedAt.UTC(),
	}
}

func stageOf(err error) string {
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		return string(stageErr.Stage)
	}
	return "unknown"
}
