package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/internal/subscription"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

var webhookStripeConfig = config.StripeConfig{
	PricePlusMonthly:    "price_plus_m",
	PricePlusQuarterly:  "price_plus_q",
	PriceEliteMonthly:   "price_elite_m",
	PriceEliteQuarterly: "price_elite_q",
}

type stubWebhookRepo struct {
	byStripeID map[string]*models.Subscription
	created    []*models.Subscription
	updated    []*models.Subscription
}

func newStubWebhookRepo(subs ...*models.Subscription) *stubWebhookRepo {
	repo := &stubWebhookRepo{byStripeID: map[string]*models.Subscription{}}
	for _, sub := range subs {
		repo.byStripeID[sub.StripeSubscriptionID] = sub
	}
	return repo
}

func (s *stubWebhookRepo) WithTx(tx *gorm.DB) subscription.Repository { return s }

func (s *stubWebhookRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubWebhookRepo) FindByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	if sub, ok := s.byStripeID[id]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubWebhookRepo) Create(ctx context.Context, sub *models.Subscription) error {
	s.created = append(s.created, sub)
	s.byStripeID[sub.StripeSubscriptionID] = sub
	return nil
}

func (s *stubWebhookRepo) Update(ctx context.Context, sub *models.Subscription) error {
	s.updated = append(s.updated, sub)
	s.byStripeID[sub.StripeSubscriptionID] = sub
	return nil
}

func (s *stubWebhookRepo) ListDueDowngrades(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	return nil, nil
}

type stubWebhookTx struct{}

func (stubWebhookTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type publishedChange struct {
	userID uuid.UUID
	tier   enums.SubscriptionTier
}

type stubWebhookPublisher struct {
	changes []publishedChange
}

func (s *stubWebhookPublisher) SubscriptionChanged(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier) {
	s.changes = append(s.changes, publishedChange{userID, tier})
}

type stubWebhookStripe struct {
	sub *stripe.Subscription
	err error
}

func (s *stubWebhookStripe) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return s.sub, s.err
}

func buildWebhookService(t *testing.T, repo subscription.Repository, fetcher stripeFetcher, pub *stubWebhookPublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		SubscriptionRepo:  repo,
		StripeClient:      fetcher,
		TransactionRunner: stubWebhookTx{},
		Publisher:         pub,
		Config:            webhookStripeConfig,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func stripeSubJSON(t *testing.T, userID uuid.UUID, priceID string, status stripe.SubscriptionStatus) []byte {
	t.Helper()
	now := time.Now().Unix()
	raw, err := json.Marshal(map[string]any{
		"id":       "sub_123",
		"customer": map[string]any{"id": "cus_123"},
		"status":   status,
		"metadata": map[string]string{"user_id": userID.String()},
		"items": map[string]any{
			"data": []map[string]any{{
				"price":                map[string]any{"id": priceID},
				"current_period_start": now,
				"current_period_end":   now + 30*24*3600,
			}},
		},
	})
	if err != nil {
		t.Fatalf("marshal stripe subscription: %v", err)
	}
	return raw
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, raw []byte) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventCreatesSubscription(t *testing.T) {
	repo := newStubWebhookRepo()
	pub := &stubWebhookPublisher{}
	svc := buildWebhookService(t, repo, &stubWebhookStripe{}, pub)
	userID := uuid.New()

	raw := stripeSubJSON(t, userID, "price_plus_m", stripe.SubscriptionStatusActive)
	err := svc.HandleEvent(context.Background(), subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, raw))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected one create, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != userID || created.Tier != enums.SubscriptionTierPlus {
		t.Fatalf("unexpected stored subscription %+v", created)
	}
	if created.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %s", created.Status)
	}
	if len(pub.changes) != 1 || pub.changes[0].tier != enums.SubscriptionTierPlus {
		t.Fatalf("expected change published, got %+v", pub.changes)
	}
}

func TestHandleEventUpdatesAndClearsLandedDowngrade(t *testing.T) {
	userID := uuid.New()
	pendingTier := enums.SubscriptionTierPlus
	pendingDate := time.Now()
	stored := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: "sub_123",
		StripeCustomerID:     "cus_123",
		Tier:                 enums.SubscriptionTierElite,
		Status:               enums.SubscriptionStatusActive,
		CurrentPeriodEnd:     time.Now().Add(24 * time.Hour),
		PendingDowngradeTier: &pendingTier,
		PendingDowngradeDate: &pendingDate,
	}
	repo := newStubWebhookRepo(stored)
	pub := &stubWebhookPublisher{}
	svc := buildWebhookService(t, repo, &stubWebhookStripe{}, pub)

	// The downgrade's target price has landed on the Stripe side.
	raw := stripeSubJSON(t, userID, "price_plus_m", stripe.SubscriptionStatusActive)
	err := svc.HandleEvent(context.Background(), subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, raw))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(repo.updated) != 1 {
		t.Fatalf("expected one update, got %d", len(repo.updated))
	}
	if stored.Tier != enums.SubscriptionTierPlus {
		t.Fatalf("expected tier flipped to plus, got %s", stored.Tier)
	}
	if stored.PendingDowngradeTier != nil || stored.PendingDowngradeDate != nil {
		t.Fatal("expected pending downgrade fields cleared")
	}
	if len(pub.changes) != 1 {
		t.Fatalf("expected change published, got %d", len(pub.changes))
	}
}

func TestHandleEventInvoiceFetchesSubscription(t *testing.T) {
	userID := uuid.New()
	raw := stripeSubJSON(t, userID, "price_elite_m", stripe.SubscriptionStatusPastDue)
	var remote stripe.Subscription
	if err := json.Unmarshal(raw, &remote); err != nil {
		t.Fatalf("unmarshal remote subscription: %v", err)
	}

	repo := newStubWebhookRepo()
	pub := &stubWebhookPublisher{}
	svc := buildWebhookService(t, repo, &stubWebhookStripe{sub: &remote}, pub)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{
			Object: map[string]interface{}{"subscription": "sub_123"},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected subscription created from fetched state, got %d", len(repo.created))
	}
	if repo.created[0].Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", repo.created[0].Status)
	}
}

func TestHandleEventIgnoresUnknownTypes(t *testing.T) {
	repo := newStubWebhookRepo()
	pub := &stubWebhookPublisher{}
	svc := buildWebhookService(t, repo, &stubWebhookStripe{}, pub)

	event := &stripe.Event{
		Type: stripe.EventType("charge.succeeded"),
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(repo.created) != 0 || len(repo.updated) != 0 || len(pub.changes) != 0 {
		t.Fatal("unknown event types must be acknowledged without side effects")
	}
}
