package subscription

import (
	"testing"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

func paidSubscription(tier enums.SubscriptionTier, interval enums.BillingInterval) *models.Subscription {
	return &models.Subscription{
		Tier:     tier,
		Status:   enums.SubscriptionStatusActive,
		Interval: &interval,
	}
}

func TestClassify(t *testing.T) {
	plusMonthly := paidSubscription(enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)

	cases := []struct {
		name     string
		current  *models.Subscription
		tier     enums.SubscriptionTier
		interval enums.BillingInterval
		want     enums.ChangeAction
	}{
		{
			name:     "same plan is a noop",
			current:  plusMonthly,
			tier:     enums.SubscriptionTierPlus,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionNoop,
		},
		{
			name:     "higher tier is an upgrade",
			current:  plusMonthly,
			tier:     enums.SubscriptionTierElite,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionUpgrade,
		},
		{
			name:     "same tier different interval is an interval change",
			current:  plusMonthly,
			tier:     enums.SubscriptionTierPlus,
			interval: enums.BillingIntervalQuarterly,
			want:     enums.ChangeActionIntervalChange,
		},
		{
			name:     "free target routes to the portal",
			current:  plusMonthly,
			tier:     enums.SubscriptionTierFree,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionPortal,
		},
		{
			name:     "lower paid tier is a downgrade",
			current:  paidSubscription(enums.SubscriptionTierElite, enums.BillingIntervalMonthly),
			tier:     enums.SubscriptionTierPlus,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionDowngrade,
		},
		{
			name:     "no subscription and paid target is new",
			current:  nil,
			tier:     enums.SubscriptionTierPlus,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionNew,
		},
		{
			name: "canceled subscription counts as free",
			current: &models.Subscription{
				Tier:   enums.SubscriptionTierElite,
				Status: enums.SubscriptionStatusCanceled,
			},
			tier:     enums.SubscriptionTierPlus,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionNew,
		},
		{
			name:     "free to free is a noop",
			current:  nil,
			tier:     enums.SubscriptionTierFree,
			interval: enums.BillingIntervalMonthly,
			want:     enums.ChangeActionNoop,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.current, tc.tier, tc.interval)
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
