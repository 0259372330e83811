package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/internal/subscription"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type changePublisher interface {
	SubscriptionChanged(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier)
}

type stripeFetcher interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// ServiceParams bundle the webhook sync dependencies.
type ServiceParams struct {
	SubscriptionRepo  subscription.Repository
	StripeClient      stripeFetcher
	TransactionRunner txRunner
	Publisher         changePublisher
	Config            config.StripeConfig
}

// Service applies Stripe subscription lifecycle events to the local ledger.
// It is the only writer of subscription rows besides the checkout/portal
// flows.
type Service struct {
	repo      subscription.Repository
	stripe    stripeFetcher
	txRunner  txRunner
	publisher changePublisher
	cfg       config.StripeConfig
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "change publisher required")
	}
	return &Service{
		repo:      params.SubscriptionRepo,
		stripe:    params.StripeClient,
		txRunner:  params.TransactionRunner,
		publisher: params.Publisher,
		cfg:       params.Config,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.syncSubscription(ctx, stripeSub)
	default:
		return nil
	}
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	var synced *subscriptionSnapshot
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stored, err := repo.FindByStripeID(ctx, stripeSub.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}

		if stored == nil {
			userID, metadataErr := subscription.UserIDFromMetadata(stripeSub.Metadata)
			if metadataErr != nil {
				return metadataErr
			}
			built, buildErr := subscription.BuildSubscriptionFromStripe(stripeSub, userID, s.cfg)
			if buildErr != nil {
				return buildErr
			}
			if err := repo.Create(ctx, built); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
			}
			synced = &subscriptionSnapshot{userID: built.UserID, tier: built.Tier}
			return nil
		}

		if err := subscription.UpdateSubscriptionFromStripe(stored, stripeSub, s.cfg); err != nil {
			return err
		}
		if err := repo.Update(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		synced = &subscriptionSnapshot{userID: stored.UserID, tier: stored.Tier}
		return nil
	})
	if err != nil {
		return err
	}

	if synced != nil {
		s.publisher.SubscriptionChanged(ctx, synced.userID, synced.tier)
	}
	return nil
}

type subscriptionSnapshot struct {
	userID uuid.UUID
	tier   enums.SubscriptionTier
}
