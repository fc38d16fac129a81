package repository

import (
	"context"
	"errors"
	"time"

	"oddlynews/internal/models"
)

// ErrDuplicateKey is returned when an insert violates a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrENSRecorded is returned when a clear targets an agent whose registration
// transaction is already recorded.
var ErrENSRecorded = errors.New("ens registration already recorded")

type AgentRepository interface {
	// ListActiveAgentsByTopic returns at most limit active rows for topic.
	ListActiveAgentsByTopic(ctx context.Context, topic string, limit int) ([]models.Agent, error)
	// GetAgentByTopic returns the row regardless of is_active, or nil.
	GetAgentByTopic(ctx context.Context, topic string) (*models.Agent, error)
	ListActiveAgents(ctx context.Context) ([]models.Agent, error)
	ListAgentsPendingENS(ctx context.Context, limit int) ([]models.Agent, error)
	MaxWalletIndex(ctx context.Context) (*int, error)
	InsertAgent(ctx context.Context, item *models.Agent) error
	UpdateAgentENS(ctx context.Context, agentID string, update ENSUpdate) error
}

type BriefingRepository interface {
	InsertBriefing(ctx context.Context, item *models.Briefing) error
	LatestBriefing(ctx context.Context, agentID string) (*models.Briefing, error)
	LatestBriefingTime(ctx context.Context, agentID string) (*time.Time, error)
	ListBriefings(ctx context.Context, params ListBriefingsParams) ([]models.Briefing, error)
}

// Repository is the unified store used by the service layer. Reads go through
// the read role; inserts and agent updates go through the admin role.
type Repository interface {
	AgentRepository
	BriefingRepository
}

type ListBriefingsParams struct {
	AgentID string
	Limit   int
	Offset  int
}

// ENSUpdate sets or clears the ENS columns of an agent. A nil Subdomain clears
// all three columns, but only while no transaction hash is recorded.
type ENSUpdate struct {
	Subdomain    *string
	RegisteredAt *time.Time
	TxHash       *string
}
