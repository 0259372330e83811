package controllers

import (
	"net/http"
	"time"

	"github.com/amouradev/amoura-backend/api/responses"
	"github.com/amouradev/amoura-backend/api/validators"
	"github.com/amouradev/amoura-backend/internal/subscription"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

type subscriptionChangeRequest struct {
	Tier     string `json:"tier" validate:"required"`
	Interval string `json:"interval"`
}

type subscriptionView struct {
	Tier                 enums.SubscriptionTier  `json:"tier"`
	EffectiveTier        enums.SubscriptionTier  `json:"effective_tier"`
	Status               string                  `json:"status,omitempty"`
	Interval             *enums.BillingInterval  `json:"interval,omitempty"`
	CurrentPeriodEnd     *time.Time              `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool                    `json:"cancel_at_period_end,omitempty"`
	PendingDowngradeTier *enums.SubscriptionTier `json:"pending_downgrade_tier,omitempty"`
	PendingDowngradeDate *time.Time              `json:"pending_downgrade_date,omitempty"`
}

func newSubscriptionView(sub *models.Subscription) subscriptionView {
	if sub == nil {
		return subscriptionView{
			Tier:          enums.SubscriptionTierFree,
			EffectiveTier: enums.SubscriptionTierFree,
		}
	}
	view := subscriptionView{
		Tier:              sub.Tier,
		EffectiveTier:     sub.EffectiveTier(),
		Status:            string(sub.Status),
		Interval:          sub.Interval,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		view.CurrentPeriodEnd = &end
	}
	if tier, ok := sub.ScheduledDowngrade(); ok {
		view.PendingDowngradeTier = &tier
		view.PendingDowngradeDate = sub.PendingDowngradeDate
	}
	return view
}

// SubscriptionCheckout starts or applies a plan change for the caller.
func SubscriptionCheckout(svc subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body subscriptionChangeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := enums.ParseSubscriptionTier(body.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription tier"))
			return
		}

		var interval enums.BillingInterval
		if body.Interval != "" {
			interval, err = enums.ParseBillingInterval(body.Interval)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid billing interval"))
				return
			}
		}

		result, err := svc.RequestChange(r.Context(), userID, tier, interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SubscriptionPortal returns a Stripe billing portal URL for the caller.
func SubscriptionPortal(svc subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.PortalURL(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

// SubscriptionFetch returns the caller's current subscription view.
func SubscriptionFetch(svc subscription.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Current(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionView(sub))
	}
}
