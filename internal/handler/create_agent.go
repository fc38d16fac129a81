package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"oddlynews/internal/models"
	"oddlynews/internal/service"
)

const (
	msgAgentCreated     = "Agent created successfully!"
	msgAlreadyTaken     = "This agent topic or ENS subdomain is already taken"
	msgENSFailedCreated = "Agent created but ENS registration failed. Please try again or contact support."
)

type createAgentRequest struct {
	Topic       string `json:"topic"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	TagID       string `json:"tag_id"`
	VoiceID     string `json:"voice_id"`
}

// ensErrorResponse reports a partial create: the agent row exists but its
// subdomain is not registered.
type ensErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	AgentID string `json:"agent_id"`
}

type createdAgentView struct {
	ID                 string     `json:"id"`
	Topic              string     `json:"topic"`
	DisplayName        string     `json:"display_name"`
	Description        string     `json:"description"`
	TagID              string     `json:"tag_id"`
	WalletAddress      *string    `json:"wallet_address"`
	ENSSubdomain       *string    `json:"ens_subdomain"`
	ENSRegisteredAt    *time.Time `json:"ens_registered_at"`
	ENSTransactionHash *string    `json:"ens_transaction_hash"`
	CreatedAt          time.Time  `json:"created_at"`
}

type blockchainView struct {
	WalletAddress   string  `json:"wallet_address,omitempty"`
	ENSSubdomain    *string `json:"ens_subdomain"`
	TransactionHash *string `json:"transaction_hash"`
}

type createAgentResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Agent      createdAgentView `json:"agent"`
	Blockchain blockchainView   `json:"blockchain"`
}

// @Summary Create an agent with wallet and ENS subdomain
// @Tags agents
// @Accept json
// @Produce json
// @Param body body createAgentRequest true "agent"
// @Success 200 {object} createAgentResponse
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 500 {object} ensErrorResponse
// @Router /api/create-agent [post]
func (h *AgentHandler) createAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "Missing required fields: topic, display_name, tag_id")
		return
	}
	res, err := h.Agents.CreateAgentWithWallet(c.Request.Context(), service.CreateAgentInput{
		Topic:       req.Topic,
		DisplayName: req.DisplayName,
		Description: req.Description,
		TagID:       req.TagID,
		VoiceID:     req.VoiceID,
	})
	if err != nil {
		h.writeProvisionError(c, req.Topic, "create-agent", err)
		return
	}
	h.logger().Info("agent created via api", zap.String("topic", res.Agent.Topic))
	c.JSON(http.StatusOK, createAgentResponse{
		Success:    true,
		Message:    msgAgentCreated,
		Agent:      newCreatedAgentView(res.Agent),
		Blockchain: newBlockchainView(res),
	})
}

// @Summary Retry ENS registration for an agent
// @Tags agents
// @Produce json
// @Param topic path string true "agent topic"
// @Success 200 {object} createAgentResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Failure 500 {object} ensErrorResponse
// @Router /api/agents/{topic}/retry-ens [post]
func (h *AgentHandler) retryENS(c *gin.Context) {
	topic := c.Param("topic")
	res, err := h.Agents.RetryENS(c.Request.Context(), topic)
	if err != nil {
		var ensErr *service.ENSRegistrationError
		switch {
		case errors.Is(err, service.ErrNotFound):
			Error(c, http.StatusNotFound, "Agent not found")
		case errors.Is(err, service.ErrENSDisabled):
			Error(c, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &ensErr):
			h.capture(c, err, map[string]string{"topic": topic, "route": "retry-ens"})
			c.JSON(http.StatusInternalServerError, ensErrorResponse{Error: err.Error(), AgentID: ensErr.AgentID})
		default:
			h.writeProvisionError(c, topic, "retry-ens", err)
		}
		return
	}
	c.JSON(http.StatusOK, createAgentResponse{
		Success:    true,
		Agent:      newCreatedAgentView(res.Agent),
		Blockchain: newBlockchainView(res),
	})
}

func (h *AgentHandler) writeProvisionError(c *gin.Context, topic, route string, err error) {
	var validation *service.ValidationError
	var ensErr *service.ENSRegistrationError
	switch {
	case errors.As(err, &validation):
		Error(c, http.StatusBadRequest, validation.Message)
	case errors.Is(err, service.ErrConflict):
		Error(c, http.StatusConflict, msgAlreadyTaken)
	case errors.As(err, &ensErr):
		h.logger().Error("ens registration failed", zap.String("topic", topic), zap.Error(err))
		h.capture(c, err, map[string]string{"topic": topic, "route": route})
		c.JSON(http.StatusInternalServerError, ensErrorResponse{Error: msgENSFailedCreated, AgentID: ensErr.AgentID})
	default:
		h.logger().Error("provision agent failed", zap.String("topic", topic), zap.Error(err))
		h.capture(c, err, map[string]string{"topic": topic, "route": route})
		Error(c, http.StatusInternalServerError, err.Error())
	}
}

func newCreatedAgentView(a *models.Agent) createdAgentView {
	if a == nil {
		return createdAgentView{}
	}
	return createdAgentView{
		ID:                 a.ID,
		Topic:              a.Topic,
		DisplayName:        a.DisplayName,
		Description:        a.Description,
		TagID:              a.TagID,
		WalletAddress:      a.WalletAddress,
		ENSSubdomain:       a.ENSSubdomain,
		ENSRegisteredAt:    a.ENSRegisteredAt,
		ENSTransactionHash: a.ENSTransactionHash,
		CreatedAt:          a.CreatedAt.UTC(),
	}
}

func newBlockchainView(res *service.ProvisionResult) blockchainView {
	view := blockchainView{WalletAddress: res.WalletAddress}
	if res.Agent != nil {
		view.ENSSubdomain = res.Agent.ENSSubdomain
		view.TransactionHash = res.Agent.ENSTransactionHash
	}
	return view
}
