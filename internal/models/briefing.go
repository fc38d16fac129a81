package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Briefing is one completed generation run. Immutable once inserted.
type Briefing struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AgentID string `gorm:"column:agent_id;type:varchar(36);not null;index:idx_briefings_agent_created,priority:1" json:"agent_id"`
	Agent   *Agent `gorm:"foreignKey:AgentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`

	Script         string `gorm:"type:text;not null" json:"script"`
	AudioURL       string `gorm:"column:audio_url;type:text;not null" json:"audio_url"`
	AudioDuration  int    `gorm:"column:audio_duration;not null" json:"audio_duration"`
	MarketCount    int    `gorm:"column:market_count;not null" json:"market_count"`
	NewsQueryCount int    `gorm:"column:news_query_count;not null" json:"news_query_count"`

	PolymarketData datatypes.JSON `gorm:"column:polymarket_data;type:jsonb;not null" json:"polymarket_data"`
	NewsData       datatypes.JSON `gorm:"column:news_data;type:jsonb;not null" json:"news_data"`
	MarketStats    datatypes.JSON `gorm:"column:market_stats;type:jsonb" json:"market_stats"`
	AIInsights     datatypes.JSON `gorm:"column:ai_insights;type:jsonb" json:"ai_insights"`
	Metadata       datatypes.JSON `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_briefings_agent_created,priority:2" json:"created_at"`
}

func (Briefing) TableName() string {
	return "briefings"
}

func (b *Briefing) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// BriefingMetadata is the shape stored in Briefing.Metadata.
type BriefingMetadata struct {
	Timestamp string `json:"timestamp"`
	Filename  string `json:"filename"`
	AudioSize int    `json:"audioSize"`
}
