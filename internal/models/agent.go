package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent is a topic-scoped briefing persona. Rows are never deleted; IsActive
// hides them from the public API.
type Agent struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Topic       string `gorm:"type:varchar(20);not null;uniqueIndex" json:"topic"`
	DisplayName string `gorm:"column:display_name;type:text;not null" json:"display_name"`
	Description string `gorm:"type:text" json:"description"`
	TagID       string `gorm:"column:tag_id;type:varchar(20);not null" json:"tag_id"`
	VoiceID     string `gorm:"column:voice_id;type:varchar(64);not null" json:"voice_id"`
	IsActive    bool   `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	WalletAddress      *string    `gorm:"column:wallet_address;type:varchar(42)" json:"wallet_address"`
	WalletIndex        *int       `gorm:"column:wallet_index;uniqueIndex" json:"wallet_index"`
	ENSSubdomain       *string    `gorm:"column:ens_subdomain;type:varchar(128);uniqueIndex" json:"ens_subdomain"`
	ENSRegisteredAt    *time.Time `gorm:"column:ens_registered_at" json:"ens_registered_at"`
	ENSTransactionHash *string    `gorm:"column:ens_transaction_hash;type:varchar(66)" json:"ens_transaction_hash"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	// LastGenerated is filled by list queries from the newest briefing.
	LastGenerated *time.Time `gorm:"-" json:"lastGenerated"`
}

func (Agent) TableName() string {
	return "agents"
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// HasENS reports whether the agent has a confirmed subdomain registration.
func (a *Agent) HasENS() bool {
	return a != nil && a.ENSTransactionHash != nil && *a.ENSTransactionHash != ""
}
