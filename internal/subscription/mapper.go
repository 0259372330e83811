package subscription

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

// BuildSubscriptionFromStripe maps a Stripe subscription into the canonical model.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID, cfg config.StripeConfig) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	priceID := determinePriceID(stripeSub)
	tier, interval, ok := cfg.PlanForPrice(priceID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe price is not a known plan").
			WithDetails(map[string]string{"price_id": priceID})
	}

	customerID := ""
	if stripeSub.Customer != nil {
		customerID = stripeSub.Customer.ID
	}

	startTS, endTS := periodFromSubscription(stripeSub)
	var price *string
	if strings.TrimSpace(priceID) != "" {
		price = &priceID
	}

	return &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: stripeSub.ID,
		StripeCustomerID:     customerID,
		Tier:                 tier,
		Status:               normalizeStatus(stripeSub.Status),
		Interval:             &interval,
		PriceID:              price,
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTime(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		CancelAt:             toTimePtr(stripeSub.CancelAt),
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
	}, nil
}

// UpdateSubscriptionFromStripe mutates the provided subscription with new
// Stripe data. When the incoming price matches the stored pending downgrade
// target, the pending fields are cleared: the downgrade has landed.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription, cfg config.StripeConfig) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	priceID := determinePriceID(stripeSub)
	tier, interval, ok := cfg.PlanForPrice(priceID)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe price is not a known plan").
			WithDetails(map[string]string{"price_id": priceID})
	}

	target.StripeSubscriptionID = stripeSub.ID
	if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
		target.StripeCustomerID = stripeSub.Customer.ID
	}
	target.Status = normalizeStatus(stripeSub.Status)
	target.Tier = tier
	target.Interval = &interval
	target.PriceID = &priceID

	startTS, endTS := periodFromSubscription(stripeSub)
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTime(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.CancelAt = toTimePtr(stripeSub.CancelAt)
	target.CanceledAt = toTimePtr(stripeSub.CanceledAt)

	if target.PendingDowngradeTier != nil && (*target.PendingDowngradeTier == tier || target.Status == enums.SubscriptionStatusCanceled) {
		target.PendingDowngradeTier = nil
		target.PendingDowngradeDate = nil
	}
	return nil
}

// UserIDFromMetadata extracts the user ID attached to Stripe metadata at
// checkout time.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw, ok := metadata["user_id"]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

// normalizeStatus folds Stripe's incomplete states into the four canonical
// statuses. Incomplete counts as past_due (payment not settled yet); any
// terminal provider state counts as canceled.
func normalizeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusPastDue
	default:
		return enums.SubscriptionStatusCanceled
	}
}

func determinePriceID(stripeSub *stripe.Subscription) string {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return ""
	}
	item := stripeSub.Items.Data[0]
	if item == nil || item.Price == nil {
		return ""
	}
	return item.Price.ID
}

func periodFromSubscription(stripeSub *stripe.Subscription) (int64, int64) {
	if stripeSub == nil || stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return 0, 0
	}
	item := stripeSub.Items.Data[0]
	if item == nil {
		return 0, 0
	}
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func toTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
