package subscription

import (
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

// Classify maps a requested plan change onto exactly one action.
//
// The decision is deterministic given the fixed tier order and the two
// billing intervals. A subscription whose status no longer grants
// entitlements counts as no paid subscription at all, so a paid target
// classifies as a fresh checkout. Dropping to free is a cancellation and
// routes to the provider's self-service portal.
func Classify(current *models.Subscription, targetTier enums.SubscriptionTier, targetInterval enums.BillingInterval) enums.ChangeAction {
	currentTier := enums.SubscriptionTierFree
	var currentInterval *enums.BillingInterval
	if current != nil && current.Status.GrantsEntitlements() && current.Tier.IsPaid() {
		currentTier = current.Tier
		currentInterval = current.Interval
	}

	if targetTier == enums.SubscriptionTierFree {
		if currentTier == enums.SubscriptionTierFree {
			return enums.ChangeActionNoop
		}
		return enums.ChangeActionPortal
	}

	if currentTier == enums.SubscriptionTierFree {
		return enums.ChangeActionNew
	}

	if targetTier == currentTier {
		if currentInterval == nil || *currentInterval == targetInterval {
			return enums.ChangeActionNoop
		}
		return enums.ChangeActionIntervalChange
	}

	if targetTier.Rank() > currentTier.Rank() {
		return enums.ChangeActionUpgrade
	}
	return enums.ChangeActionDowngrade
}
