package entitlement

import (
	"time"

	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

// CapabilitySet is the per-user view of what the account may do right now.
// Identical inputs always produce an identical set, so server-side
// enforcement points can recompute it instead of trusting the client.
type CapabilitySet struct {
	Tier                enums.SubscriptionTier `json:"tier"`
	ReputationTier      enums.ReputationTier   `json:"reputation_tier"`
	MaxPhotos           int                    `json:"max_photos"`
	CanMessageCrossTier bool                   `json:"can_message_cross_tier"`
	CrossTierBudget     reputation.Budget      `json:"cross_tier_budget"`
	AdvancedFilters     bool                   `json:"advanced_filters"`
	SeeLikers           bool                   `json:"see_likers"`
	Incognito           bool                   `json:"incognito"`
}

// Resolve computes the capability set from the subscription and reputation
// rows. Either row may be nil; a nil subscription resolves as free, a nil
// reputation record as the lowest tier. Resolve is pure: it never touches
// storage and never mutates its inputs.
func Resolve(sub *models.Subscription, rep *models.ReputationRecord, cfg config.EntitlementsConfig, now time.Time) CapabilitySet {
	tier := enums.SubscriptionTierFree
	premium := false
	if sub != nil {
		tier = sub.EffectiveTier()
		premium = sub.IsPremium()
	}

	budget := reputation.HigherTierBudget(rep, premium, now)

	maxPhotos := budget.Tier.Config().MaxPhotos
	if premium {
		maxPhotos = cfg.PremiumMaxPhotos
	}

	set := CapabilitySet{
		Tier:                tier,
		ReputationTier:      budget.Tier,
		MaxPhotos:           maxPhotos,
		CanMessageCrossTier: budget.Remaining != 0,
		CrossTierBudget:     budget,
	}

	// Feature gates key off the subscription tier alone; reputation only
	// governs the cross-tier messaging budget above.
	switch tier {
	case enums.SubscriptionTierElite:
		set.AdvancedFilters = true
		set.SeeLikers = true
		set.Incognito = true
	case enums.SubscriptionTierPlus:
		set.AdvancedFilters = true
		set.SeeLikers = true
	}
	return set
}
