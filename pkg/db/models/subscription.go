package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/pkg/enums"
)

// Subscription persists Stripe subscription state per user.
//
// PendingDowngradeTier/PendingDowngradeDate hold a downgrade scheduled for
// period end. They are ignored whenever CancelAtPeriodEnd is true: a
// scheduled cancellation always takes precedence over a scheduled
// downgrade.
type Subscription struct {
	ID                   uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                 `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	StripeSubscriptionID string                    `gorm:"column:stripe_subscription_id;not null;unique"`
	StripeCustomerID     string                    `gorm:"column:stripe_customer_id;not null"`
	Tier                 enums.SubscriptionTier    `gorm:"column:tier;not null;default:'free'"`
	Status               enums.SubscriptionStatus  `gorm:"column:status;not null;default:'active'"`
	Interval             *enums.BillingInterval    `gorm:"column:billing_interval"`
	PriceID              *string                   `gorm:"column:price_id"`
	CurrentPeriodStart   *time.Time                `gorm:"column:current_period_start"`
	CurrentPeriodEnd     time.Time                 `gorm:"column:current_period_end;not null"`
	CancelAtPeriodEnd    bool                      `gorm:"column:cancel_at_period_end;not null;default:false"`
	CancelAt             *time.Time                `gorm:"column:cancel_at"`
	CanceledAt           *time.Time                `gorm:"column:canceled_at"`
	PendingDowngradeTier *enums.SubscriptionTier   `gorm:"column:pending_downgrade_tier"`
	PendingDowngradeDate *time.Time                `gorm:"column:pending_downgrade_date"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectiveTier reports the tier whose capabilities are in effect right
// now. A scheduled downgrade keeps the current tier until period end.
func (s *Subscription) EffectiveTier() enums.SubscriptionTier {
	if s == nil || !s.Status.GrantsEntitlements() {
		return enums.SubscriptionTierFree
	}
	return s.Tier
}

// ScheduledDowngrade returns the pending downgrade target, applying the
// cancellation-precedence invariant.
func (s *Subscription) ScheduledDowngrade() (enums.SubscriptionTier, bool) {
	if s == nil || s.CancelAtPeriodEnd || s.PendingDowngradeTier == nil {
		return "", false
	}
	return *s.PendingDowngradeTier, true
}

// IsPremium reports whether the subscription grants paid capabilities.
func (s *Subscription) IsPremium() bool {
	return s.EffectiveTier().IsPaid()
}
