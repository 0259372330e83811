package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/pkg/enums"
)

// ReputationRecord tracks a user's trust tier and the daily counter for
// conversations started with higher-tier users.
//
// DailyLimitOverride takes precedence over the tier configuration when set;
// -1 means unlimited. CountersAsOf is the UTC day the counter belongs to:
// the counter is only meaningful while CountersAsOf equals today.
type ReputationRecord struct {
	UserID                       uuid.UUID            `gorm:"column:user_id;type:uuid;primaryKey"`
	Tier                         enums.ReputationTier `gorm:"column:tier;not null;default:'new'"`
	DailyLimitOverride           *int                 `gorm:"column:daily_limit_override"`
	HigherTierConversationsToday int                  `gorm:"column:higher_tier_conversations_today;not null;default:0"`
	CountersAsOf                 time.Time            `gorm:"column:counters_as_of;type:date;not null"`
	UpdatedAt                    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
