package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type changePublisher interface {
	SubscriptionChanged(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier)
}

// ChangeResult reports the outcome of a plan change request. Exactly one of
// the checkout/portal/updated shapes is populated depending on the action.
type ChangeResult struct {
	Action      enums.ChangeAction `json:"action"`
	SessionID   string             `json:"session_id,omitempty"`
	URL         string             `json:"url,omitempty"`
	Updated     bool               `json:"updated,omitempty"`
	EffectiveAt *time.Time         `json:"effective_at,omitempty"`
	Message     string             `json:"message,omitempty"`
}

// Service exposes subscription plan changes backed by Stripe.
type Service interface {
	RequestChange(ctx context.Context, userID uuid.UUID, targetTier enums.SubscriptionTier, targetInterval enums.BillingInterval) (*ChangeResult, error)
	PortalURL(ctx context.Context, userID uuid.UUID) (string, error)
	Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	// ApplyDueDowngrades swaps the Stripe price for every subscription
	// whose scheduled downgrade date has passed. Returns how many were
	// applied.
	ApplyDueDowngrades(ctx context.Context, now time.Time, limit int) (int, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo              Repository
	Users             usersRepository
	TransactionRunner txRunner
	Stripe            StripeBillingClient
	Config            config.StripeConfig
	Publisher         changePublisher
}

type service struct {
	repo      Repository
	users     usersRepository
	tx        txRunner
	stripe    StripeBillingClient
	cfg       config.StripeConfig
	publisher changePublisher
	now       func() time.Time
}

// NewService builds the subscription service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "change publisher required")
	}
	return &service{
		repo:      params.Repo,
		users:     params.Users,
		tx:        params.TransactionRunner,
		stripe:    params.Stripe,
		cfg:       params.Config,
		publisher: params.Publisher,
		now:       time.Now,
	}, nil
}

func (s *service) RequestChange(ctx context.Context, userID uuid.UUID, targetTier enums.SubscriptionTier, targetInterval enums.BillingInterval) (*ChangeResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !targetTier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription tier")
	}
	if targetTier.IsPaid() && !targetInterval.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing interval")
	}

	current, err := s.findCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch action := Classify(current, targetTier, targetInterval); action {
	case enums.ChangeActionNoop:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already subscribed to this plan")
	case enums.ChangeActionPortal:
		url, err := s.portalURLForSubscription(ctx, current)
		if err != nil {
			return nil, err
		}
		return &ChangeResult{Action: action, URL: url}, nil
	case enums.ChangeActionNew:
		return s.startCheckout(ctx, userID, current, targetTier, targetInterval)
	case enums.ChangeActionUpgrade:
		return s.applyUpgrade(ctx, current, targetTier, targetInterval)
	case enums.ChangeActionDowngrade:
		return s.scheduleDowngrade(ctx, current, targetTier)
	case enums.ChangeActionIntervalChange:
		return s.applyIntervalChange(ctx, current, targetInterval)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unhandled change action")
	}
}

func (s *service) PortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	current, err := s.findCurrent(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.portalURLForSubscription(ctx, current)
}

func (s *service) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	return s.findCurrent(ctx, userID)
}

func (s *service) ApplyDueDowngrades(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.ListDueDowngrades(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due downgrades")
	}

	applied := 0
	for i := range due {
		sub := due[i]
		if sub.PendingDowngradeTier == nil || sub.Interval == nil {
			continue
		}
		targetTier := *sub.PendingDowngradeTier

		priceID, err := s.cfg.PriceFor(targetTier, *sub.Interval)
		if err != nil {
			return applied, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve downgrade price")
		}
		updated, err := s.swapPrice(ctx, &sub, priceID, "none", false)
		if err != nil {
			return applied, err
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			stored, err := repo.FindByStripeID(ctx, sub.StripeSubscriptionID)
			if err != nil {
				return err
			}
			if err := UpdateSubscriptionFromStripe(stored, updated, s.cfg); err != nil {
				return err
			}
			stored.PendingDowngradeTier = nil
			stored.PendingDowngradeDate = nil
			return repo.Update(ctx, stored)
		})
		if err != nil {
			return applied, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist downgrade")
		}

		s.publisher.SubscriptionChanged(ctx, sub.UserID, targetTier)
		applied++
	}
	return applied, nil
}

func (s *service) findCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	return sub, nil
}

func (s *service) startCheckout(ctx context.Context, userID uuid.UUID, current *models.Subscription, tier enums.SubscriptionTier, interval enums.BillingInterval) (*ChangeResult, error) {
	priceID, err := s.cfg.PriceFor(tier, interval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve plan price")
	}

	customerID := ""
	if current != nil {
		customerID = current.StripeCustomerID
	}
	if customerID == "" {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
		}
		created, err := s.stripe.NewCustomer(ctx, &stripe.CustomerParams{
			Email: stripe.String(user.Email),
			Name:  stripe.String(user.DisplayName),
			Metadata: map[string]string{
				"user_id": userID.String(),
			},
		})
		if err != nil {
			return nil, mapStripeError(err, "create stripe customer")
		}
		customerID = created.ID
	}

	session, err := s.stripe.NewCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(s.cfg.CheckoutCancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": userID.String(),
			},
		},
	})
	if err != nil {
		return nil, mapStripeError(err, "create checkout session")
	}

	return &ChangeResult{
		Action:    enums.ChangeActionNew,
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

func (s *service) applyUpgrade(ctx context.Context, current *models.Subscription, tier enums.SubscriptionTier, interval enums.BillingInterval) (*ChangeResult, error) {
	priceID, err := s.cfg.PriceFor(tier, interval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve plan price")
	}

	// Upgrades take effect immediately with a prorated charge for the
	// remainder of the period.
	updated, err := s.swapPrice(ctx, current, priceID, "always_invoice", false)
	if err != nil {
		return nil, err
	}

	if err := s.syncFromStripe(ctx, current.StripeSubscriptionID, updated, true); err != nil {
		return nil, err
	}

	s.publisher.SubscriptionChanged(ctx, current.UserID, tier)
	return &ChangeResult{Action: enums.ChangeActionUpgrade, Updated: true}, nil
}

func (s *service) scheduleDowngrade(ctx context.Context, current *models.Subscription, tier enums.SubscriptionTier) (*ChangeResult, error) {
	if current.CancelAtPeriodEnd {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is scheduled for cancellation")
	}

	effective := current.CurrentPeriodEnd
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindByStripeID(ctx, current.StripeSubscriptionID)
		if err != nil {
			return err
		}
		stored.PendingDowngradeTier = &tier
		stored.PendingDowngradeDate = &effective
		return repo.Update(ctx, stored)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule downgrade")
	}

	return &ChangeResult{
		Action:      enums.ChangeActionDowngrade,
		Updated:     true,
		EffectiveAt: &effective,
		Message:     "current capabilities remain until the end of the billing period",
	}, nil
}

func (s *service) applyIntervalChange(ctx context.Context, current *models.Subscription, interval enums.BillingInterval) (*ChangeResult, error) {
	priceID, err := s.cfg.PriceFor(current.Tier, interval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve plan price")
	}

	credit, currency, err := s.unusedTimeCredit(ctx, current)
	if err != nil {
		return nil, err
	}

	// The cycle restarts now; unused time from the old cycle comes back as
	// a customer balance credit instead of a Stripe proration line.
	updated, err := s.swapPrice(ctx, current, priceID, "none", true)
	if err != nil {
		return nil, err
	}

	if credit > 0 {
		_, err = s.stripe.CreditBalance(ctx, &stripe.CustomerBalanceTransactionParams{
			Customer:    stripe.String(current.StripeCustomerID),
			Amount:      stripe.Int64(-credit),
			Currency:    stripe.String(currency),
			Description: stripe.String("credit for unused time on previous billing cycle"),
		})
		if err != nil {
			return nil, mapStripeError(err, "credit unused time")
		}
	}

	if err := s.syncFromStripe(ctx, current.StripeSubscriptionID, updated, false); err != nil {
		return nil, err
	}

	s.publisher.SubscriptionChanged(ctx, current.UserID, current.Tier)
	return &ChangeResult{Action: enums.ChangeActionIntervalChange, Updated: true}, nil
}

// unusedTimeCredit computes the value of the remaining period time on the
// old price, in the price's smallest currency unit.
func (s *service) unusedTimeCredit(ctx context.Context, current *models.Subscription) (int64, string, error) {
	if current.PriceID == nil || current.CurrentPeriodStart == nil {
		return 0, "", nil
	}

	oldPrice, err := s.stripe.GetPrice(ctx, *current.PriceID)
	if err != nil {
		return 0, "", mapStripeError(err, "fetch current price")
	}

	now := s.now()
	total := current.CurrentPeriodEnd.Sub(*current.CurrentPeriodStart)
	left := current.CurrentPeriodEnd.Sub(now)
	if total <= 0 || left <= 0 {
		return 0, string(oldPrice.Currency), nil
	}

	fraction := decimal.NewFromInt(int64(left)).Div(decimal.NewFromInt(int64(total)))
	credit := decimal.NewFromInt(oldPrice.UnitAmount).Mul(fraction).Floor()
	return credit.IntPart(), string(oldPrice.Currency), nil
}

// swapPrice updates the single subscription item to the given price.
func (s *service) swapPrice(ctx context.Context, current *models.Subscription, priceID, prorationBehavior string, resetCycle bool) (*stripe.Subscription, error) {
	live, err := s.stripe.Get(ctx, current.StripeSubscriptionID, nil)
	if err != nil {
		return nil, mapStripeError(err, "fetch stripe subscription")
	}
	if live.Items == nil || len(live.Items.Data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription has no items")
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(live.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	}
	if resetCycle {
		params.BillingCycleAnchorNow = stripe.Bool(true)
	}

	updated, err := s.stripe.Update(ctx, current.StripeSubscriptionID, params)
	if err != nil {
		return nil, mapStripeError(err, "update stripe subscription")
	}
	return updated, nil
}

// syncFromStripe persists the updated Stripe state over the stored row.
func (s *service) syncFromStripe(ctx context.Context, stripeSubscriptionID string, stripeSub *stripe.Subscription, clearPending bool) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		stored, err := repo.FindByStripeID(ctx, stripeSubscriptionID)
		if err != nil {
			return err
		}
		if err := UpdateSubscriptionFromStripe(stored, stripeSub, s.cfg); err != nil {
			return err
		}
		if clearPending {
			stored.PendingDowngradeTier = nil
			stored.PendingDowngradeDate = nil
		}
		return repo.Update(ctx, stored)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}
	return nil
}

func (s *service) portalURLForSubscription(ctx context.Context, current *models.Subscription) (string, error) {
	if current == nil || current.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeFailedPrecondition, "no billing account on file")
	}

	session, err := s.stripe.NewPortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(current.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.PortalReturnURL),
	})
	if err != nil {
		return "", mapStripeError(err, "create portal session")
	}
	return session.URL, nil
}

// mapStripeError converts provider failures into coded errors. The
// provider's "already subscribed" rejection is surfaced verbatim.
func mapStripeError(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := strings.TrimSpace(stripeErr.Msg)
		if strings.Contains(strings.ToLower(msg), "already subscribed") {
			return pkgerrors.New(pkgerrors.CodeConflict, msg)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
