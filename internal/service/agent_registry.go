package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"oddlynews/internal/chain"
	"oddlynews/internal/models"
	"oddlynews/internal/repository"
)

const (
	topicMinLen         = 3
	topicMaxLen         = 20
	walletIndexAttempts = 3
	DefaultVoiceID      = "gnPxliFHTp6OK6tcoA6i"
)

var topicPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Registrar is the ENS subset used by the registry.
type Registrar interface {
	Available(ctx context.Context, label string) (bool, error)
	Register(ctx context.Context, label string, owner string) (*chain.Registration, error)
	Subdomain(label string) string
}

type AgentRegistry struct {
	Repo         repository.Repository
	Registrar    Registrar
	Mnemonic     string
	DefaultVoice string
	Now          func() time.Time
	Logger       *zap.Logger
}

type CreateAgentInput struct {
	Topic       string
	DisplayName string
	Description string
	TagID       string
	VoiceID     string
}

type ProvisionResult struct {
	Agent         *models.Agent
	WalletAddress string
	Registration  *chain.Registration
}

// ValidateCreateAgent checks required fields, topic charset and topic length,
// in that order.
func ValidateCreateAgent(in CreateAgentInput) error {
	if strings.TrimSpace(in.Topic) == "" || strings.TrimSpace(in.DisplayName) == "" || strings.TrimSpace(in.TagID) == "" {
		return &ValidationError{Message: "Missing required fields: topic, display_name, tag_id"}
	}
	if !topicPattern.MatchString(in.Topic) {
		return &ValidationError{Message: "Topic must be lowercase letters, numbers, and hyphens only (e.g., 'crypto-prices')"}
	}
	if len(in.Topic) < topicMinLen || len(in.Topic) > topicMaxLen {
		return &ValidationError{Message: fmt.Sprintf("Topic must be between %d and %d characters", topicMinLen, topicMaxLen)}
	}
	return nil
}

// GetAgent returns the single active agent for topic. Zero or several
// matches are both ErrNotFound.
func (r *AgentRegistry) GetAgent(ctx context.Context, topic string) (*models.Agent, error) {
	items, err := r.Repo.ListActiveAgentsByTopic(ctx, topic, 2)
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("%w: agent %q", ErrNotFound, topic)
	}
	return &items[0], nil
}

// ListAgents returns active agents oldest first, each with the time of its
// newest briefing.
func (r *AgentRegistry) ListAgents(ctx context.Context) ([]models.Agent, error) {
	items, err := r.Repo.ListActiveAgents(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Agent{}
	}
	for i := range items {
		ts, err := r.Repo.LatestBriefingTime(ctx, items[i].ID)
		if err != nil {
			return nil, fmt.Errorf("latest briefing for %s: %w", items[i].Topic, err)
		}
		items[i].LastGenerated = ts
	}
	return items, nil
}

// CreateAgentWithWallet validates input, allocates the next wallet index,
// inserts the agent and registers its ENS subdomain. When registration fails
// the agent is kept with NULL ENS fields and *ENSRegistrationError is returned
// together with the result.
func (r *AgentRegistry) CreateAgentWithWallet(ctx context.Context, in CreateAgentInput) (*ProvisionResult, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.TagID = strings.TrimSpace(in.TagID)
	if in.TagID == "" {
		if tag, ok := TagForTopic(in.Topic); ok {
			in.TagID = tag
		}
	}
	if err := ValidateCreateAgent(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Description) == "" {
		in.Description = "Market intelligence for " + in.DisplayName
	}
	if strings.TrimSpace(in.VoiceID) == "" {
		in.VoiceID = r.defaultVoice()
	}

	existing, err := r.Repo.GetAgentByTopic(ctx, in.Topic)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: topic %q is already taken", ErrConflict, in.Topic)
	}
	if r.Registrar != nil {
		available, err := r.Registrar.Available(ctx, in.Topic)
		if err != nil {
			return nil, fmt.Errorf("%w: ens availability: %v", ErrUpstream, err)
		}
		if !available {
			return nil, fmt.Errorf("%w: %s is already taken", ErrConflict, r.Registrar.Subdomain(in.Topic))
		}
	}

	agent, wallet, err := r.insertWithWallet(ctx, in)
	if err != nil {
		return nil, err
	}
	result := &ProvisionResult{Agent: agent}
	if wallet != nil {
		result.WalletAddress = wallet.Address.Hex()
	}
	r.logger().Info("agent created",
		zap.String("topic", agent.Topic),
		zap.String("agent_id", agent.ID),
		zap.String("wallet", result.WalletAddress),
	)

	if r.Registrar == nil || wallet == nil {
		return result, nil
	}
	reg, err := r.registerENS(ctx, agent)
	if err != nil {
		return result, err
	}
	result.Registration = reg
	return result, nil
}

// RetryENS re-runs subdomain registration for an agent left without one.
func (r *AgentRegistry) RetryENS(ctx context.Context, topic string) (*ProvisionResult, error) {
	if r.Registrar == nil {
		return nil, ErrENSDisabled
	}
	agent, err := r.GetAgent(ctx, topic)
	if err != nil {
		return nil, err
	}
	if agent.HasENS() {
		return nil, fmt.Errorf("%w: %s is already registered", ErrConflict, r.Registrar.Subdomain(agent.Topic))
	}
	if agent.WalletAddress == nil || !chain.IsValidAddress(*agent.WalletAddress) {
		return nil, &ValidationError{Message: "Agent has no wallet to own an ENS subdomain"}
	}
	result := &ProvisionResult{Agent: agent, WalletAddress: *agent.WalletAddress}
	reg, err := r.registerENS(ctx, agent)
	if err != nil {
		var regErr *ENSRegistrationError
		if errors.As(err, &regErr) && errors.Is(regErr.Err, chain.ErrLabelTaken) {
			return result, fmt.Errorf("%w: %s is already taken", ErrConflict, r.Registrar.Subdomain(agent.Topic))
		}
		return result, err
	}
	result.Registration = reg
	return result, nil
}

// RetryPendingENS attempts registration for up to limit agents that have a
// wallet but no confirmed subdomain. It returns how many succeeded.
func (r *AgentRegistry) RetryPendingENS(ctx context.Context, limit int) (int, error) {
	if r.Registrar == nil {
		return 0, nil
	}
	pending, err := r.Repo.ListAgentsPendingENS(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := r.registerENS(ctx, &pending[i]); err != nil {
			r.logger().Warn("ens retry failed", zap.String("topic", pending[i].Topic), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

// SeedDefaultAgents inserts the built-in topics that do not exist yet. Seeded
// agents carry no wallet.
func (r *AgentRegistry) SeedDefaultAgents(ctx context.Context) (int, error) {
	created := 0
	for _, def := range DefaultTopics {
		existing, err := r.Repo.GetAgentByTopic(ctx, def.Topic)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		agent := &models.Agent{
			Topic:       def.Topic,
			DisplayName: def.DisplayName,
			Description: "Market intelligence for " + def.DisplayName,
			TagID:       def.TagID,
			VoiceID:     r.defaultVoice(),
			IsActive:    true,
		}
		if err := r.Repo.InsertAgent(ctx, agent); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (r *AgentRegistry) insertWithWallet(ctx context.Context, in CreateAgentInput) (*models.Agent, *chain.Wallet, error) {
	var lastErr error
	for attempt := 0; attempt < walletIndexAttempts; attempt++ {
		agent := &models.Agent{
			Topic:       in.Topic,
			DisplayName: in.DisplayName,
			Description: in.Description,
			TagID:       in.TagID,
			VoiceID:     in.VoiceID,
			IsActive:    true,
		}
		var wallet *chain.Wallet
		if strings.TrimSpace(r.Mnemonic) != "" {
			maxIndex, err := r.Repo.MaxWalletIndex(ctx)
			if err != nil {
				return nil, nil, err
			}
			var allocated []int
			if maxIndex != nil {
				allocated = []int{*maxIndex}
			}
			wallet, err = chain.DeriveWallet(r.Mnemonic, chain.NextWalletIndex(allocated))
			if err != nil {
				return nil, nil, fmt.Errorf("derive wallet: %w", err)
			}
			addr := wallet.Address.Hex()
			idx := wallet.Index
			agent.WalletAddress = &addr
			agent.WalletIndex = &idx
		}
		err := r.Repo.InsertAgent(ctx, agent)
		if err == nil {
			return agent, wallet, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, nil, err
		}
		lastErr = err
		taken, getErr := r.Repo.GetAgentByTopic(ctx, in.Topic)
		if getErr != nil {
			return nil, nil, getErr
		}
		if taken != nil {
			return nil, nil, fmt.Errorf("%w: topic %q is already taken", ErrConflict, in.Topic)
		}
		r.logger().Warn("wallet index collision, retrying",
			zap.String("topic", in.Topic),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, nil, fmt.Errorf("allocate wallet index after %d attempts: %w", walletIndexAttempts, lastErr)
}

func (r *AgentRegistry) registerENS(ctx context.Context, agent *models.Agent) (*chain.Registration, error) {
	if agent.WalletAddress == nil {
		return nil, &ENSRegistrationError{AgentID: agent.ID, Err: errors.New("agent has no wallet")}
	}
	reg, err := r.Registrar.Register(ctx, agent.Topic, *agent.WalletAddress)
	if err != nil {
		clearErr := r.Repo.UpdateAgentENS(ctx, agent.ID, repository.ENSUpdate{})
		if errors.Is(clearErr, repository.ErrENSRecorded) {
			if recorded := r.recordedRegistration(ctx, agent); recorded != nil {
				r.logger().Info("ens already recorded by another run",
					zap.String("topic", agent.Topic),
					zap.NamedError("register_error", err),
				)
				return recorded, nil
			}
		} else if clearErr != nil {
			r.logger().Error("clear ens fields failed", zap.String("agent_id", agent.ID), zap.Error(clearErr))
		}
		agent.ENSSubdomain = nil
		agent.ENSRegisteredAt = nil
		agent.ENSTransactionHash = nil
		r.logger().Error("ens registration failed", zap.String("topic", agent.Topic), zap.Error(err))
		return nil, &ENSRegistrationError{AgentID: agent.ID, Err: err}
	}
	now := r.now().UTC()
	subdomain := reg.Subdomain
	txHash := reg.TxHash.Hex()
	if err := r.Repo.UpdateAgentENS(ctx, agent.ID, repository.ENSUpdate{
		Subdomain:    &subdomain,
		RegisteredAt: &now,
		TxHash:       &txHash,
	}); err != nil {
		return reg, &ENSRegistrationError{AgentID: agent.ID, Err: fmt.Errorf("record registration %s: %w", txHash, err)}
	}
	agent.ENSSubdomain = &subdomain
	agent.ENSRegisteredAt = &now
	agent.ENSTransactionHash = &txHash
	r.logger().Info("ens registered",
		zap.String("subdomain", subdomain),
		zap.String("tx", txHash),
	)
	return reg, nil
}

// recordedRegistration reloads agent and, when its row carries a confirmed
// registration, copies it onto agent.
func (r *AgentRegistry) recordedRegistration(ctx context.Context, agent *models.Agent) *chain.Registration {
	stored, err := r.Repo.GetAgentByTopic(ctx, agent.Topic)
	if err != nil || stored == nil || stored.ID != agent.ID || !stored.HasENS() || stored.ENSSubdomain == nil {
		return nil
	}
	agent.ENSSubdomain = stored.ENSSubdomain
	agent.ENSRegisteredAt = stored.ENSRegisteredAt
	agent.ENSTransactionHash = stored.ENSTransactionHash
	reg := &chain.Registration{
		Subdomain: *stored.ENSSubdomain,
		TxHash:    common.HexToHash(*stored.ENSTransactionHash),
	}
	if stored.WalletAddress != nil {
		reg.Owner = common.HexToAddress(*stored.WalletAddress)
	}
	return reg
}

func (r *AgentRegistry) defaultVoice() string {
	if strings.TrimSpace(r.DefaultVoice) != "" {
		return r.DefaultVoice
	}
	return DefaultVoiceID
}

func (r *AgentRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *AgentRegistry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
