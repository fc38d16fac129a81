package gormrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"oddlynews/internal/models"
	"oddlynews/internal/repository"
)

// Store reads through db and writes through admin. Both may be the same handle.
type Store struct {
	db    *gorm.DB
	admin *gorm.DB
}

func New(db *gorm.DB, admin *gorm.DB) *Store {
	if admin == nil {
		admin = db
	}
	return &Store{db: db, admin: admin}
}

var _ repository.Repository = (*Store)(nil)

// --- agents ------------------------------------------------------------------

func (s *Store) ListActiveAgentsByTopic(ctx context.Context, topic string, limit int) ([]models.Agent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Agent
	err := s.db.WithContext(ctx).
		Where("topic = ?", strings.TrimSpace(topic)).
		Where("is_active = ?", true).
		Order("created_at asc").
		Limit(normalizeLimit(limit, 2)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetAgentByTopic(ctx context.Context, topic string) (*models.Agent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Agent
	err := s.db.WithContext(ctx).Where("topic = ?", strings.TrimSpace(topic)).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveAgents(ctx context.Context) ([]models.Agent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Agent
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListAgentsPendingENS returns active agents that hold a wallet but have no
// confirmed subdomain registration.
func (s *Store) ListAgentsPendingENS(ctx context.Context, limit int) ([]models.Agent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Agent
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("wallet_address IS NOT NULL").
		Where("ens_transaction_hash IS NULL").
		Order("created_at asc").
		Limit(normalizeLimit(limit, 20)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MaxWalletIndex(ctx context.Context) (*int, error) {
	if s == nil || s.admin == nil {
		return nil, nil
	}
	var maxIndex sql.NullInt64
	row := s.admin.WithContext(ctx).
		Model(&models.Agent{}).
		Select("MAX(wallet_index)").
		Row()
	if err := row.Scan(&maxIndex); err != nil {
		return nil, err
	}
	if !maxIndex.Valid {
		return nil, nil
	}
	idx := int(maxIndex.Int64)
	return &idx, nil
}

func (s *Store) InsertAgent(ctx context.Context, item *models.Agent) error {
	if s == nil || s.admin == nil || item == nil {
		return nil
	}
	return translate(s.admin.WithContext(ctx).Create(item).Error)
}

func (s *Store) UpdateAgentENS(ctx context.Context, agentID string, update repository.ENSUpdate) error {
	if s == nil || s.admin == nil {
		return nil
	}
	values := map[string]any{
		"ens_subdomain":        nil,
		"ens_registered_at":    nil,
		"ens_transaction_hash": nil,
	}
	if update.Subdomain != nil {
		values["ens_subdomain"] = *update.Subdomain
		if update.RegisteredAt != nil {
			values["ens_registered_at"] = update.RegisteredAt.UTC()
		}
		if update.TxHash != nil {
			values["ens_transaction_hash"] = *update.TxHash
		}
	}
	id := strings.TrimSpace(agentID)
	query := s.admin.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", id)
	if update.Subdomain == nil {
		query = query.Where("ens_transaction_hash IS NULL")
	}
	res := query.Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if update.Subdomain != nil {
		return gorm.ErrRecordNotFound
	}
	var count int64
	if err := s.admin.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return repository.ErrENSRecorded
}

// --- briefings ---------------------------------------------------------------

func (s *Store) InsertBriefing(ctx context.Context, item *models.Briefing) error {
	if s == nil || s.admin == nil || item == nil {
		return nil
	}
	return translate(s.admin.WithContext(ctx).Create(item).Error)
}

func (s *Store) LatestBriefing(ctx context.Context, agentID string) (*models.Briefing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Briefing
	err := s.db.WithContext(ctx).
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		Order("created_at desc").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Store) LatestBriefingTime(ctx context.Context, agentID string) (*time.Time, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Briefing
	err := s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("agent_id = ?", strings.TrimSpace(agentID)).
		Order("created_at desc").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	ts := items[0].CreatedAt.UTC()
	return &ts, nil
}

func (s *Store) ListBriefings(ctx context.Context, params repository.ListBriefingsParams) ([]models.Briefing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Briefing{})
	if agentID := strings.TrimSpace(params.AgentID); agentID != "" {
		query = query.Where("agent_id = ?", agentID)
	}
	var items []models.Briefing
	err := query.
		Order("created_at desc").
		Limit(normalizeLimit(params.Limit, 10)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", repository.ErrDuplicateKey, err)
	}
	return err
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
