package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		PricePlusMonthly:    "price_plus_m",
		PricePlusQuarterly:  "price_plus_q",
		PriceEliteMonthly:   "price_elite_m",
		PriceEliteQuarterly: "price_elite_q",
		CheckoutSuccessURL:  "https://app.amoura.test/billing/success",
		CheckoutCancelURL:   "https://app.amoura.test/billing/cancel",
		PortalReturnURL:     "https://app.amoura.test/settings",
	}
}

type stubSubRepo struct {
	byUser    *models.Subscription
	byStripe  *models.Subscription
	updated   *models.Subscription
	created   *models.Subscription
	due       []models.Subscription
	updateErr error
}

func (s *stubSubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSubRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.byUser == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byUser, nil
}

func (s *stubSubRepo) FindByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	if s.byStripe == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.byStripe, nil
}

func (s *stubSubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	s.created = sub
	return nil
}

func (s *stubSubRepo) Update(ctx context.Context, sub *models.Subscription) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = sub
	return nil
}

func (s *stubSubRepo) ListDueDowngrades(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	return s.due, nil
}

type stubSubTx struct{}

func (stubSubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubSubUsers struct {
	user *models.User
}

func (s *stubSubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubStripe struct {
	liveSub       *stripe.Subscription
	updatedSub    *stripe.Subscription
	updateParams  *stripe.SubscriptionParams
	session       *stripe.CheckoutSession
	sessionParams *stripe.CheckoutSessionParams
	portal        *stripe.BillingPortalSession
	customer      *stripe.Customer
	price         *stripe.Price
	credit        *stripe.CustomerBalanceTransactionParams
	err           error
}

func (s *stubStripe) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.liveSub, nil
}

func (s *stubStripe) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.updateParams = params
	return s.updatedSub, nil
}

func (s *stubStripe) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sessionParams = params
	return s.session, nil
}

func (s *stubStripe) NewPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.portal, nil
}

func (s *stubStripe) NewCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.customer, nil
}

func (s *stubStripe) GetPrice(ctx context.Context, id string) (*stripe.Price, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.price, nil
}

func (s *stubStripe) CreditBalance(ctx context.Context, params *stripe.CustomerBalanceTransactionParams) (*stripe.CustomerBalanceTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.credit = params
	return &stripe.CustomerBalanceTransaction{}, nil
}

type stubSubPublisher struct {
	userID uuid.UUID
	tier   enums.SubscriptionTier
	calls  int
}

func (s *stubSubPublisher) SubscriptionChanged(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier) {
	s.userID = userID
	s.tier = tier
	s.calls++
}

func newSubService(t *testing.T, repo *stubSubRepo, users *stubSubUsers, api *stubStripe, pub *stubSubPublisher) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Users:             users,
		TransactionRunner: stubSubTx{},
		Stripe:            api,
		Config:            testStripeConfig(),
		Publisher:         pub,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func activeSub(userID uuid.UUID, tier enums.SubscriptionTier, interval enums.BillingInterval) *models.Subscription {
	start := time.Now().Add(-10 * 24 * time.Hour)
	priceID := "price_plus_m"
	return &models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		StripeSubscriptionID: "sub_123",
		StripeCustomerID:     "cus_123",
		Tier:                 tier,
		Status:               enums.SubscriptionStatusActive,
		Interval:             &interval,
		PriceID:              &priceID,
		CurrentPeriodStart:   &start,
		CurrentPeriodEnd:     time.Now().Add(20 * 24 * time.Hour),
	}
}

func stripeSubWithPrice(priceID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       "sub_123",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_123"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					ID:                 "si_123",
					Price:              &stripe.Price{ID: priceID},
					CurrentPeriodStart: time.Now().Unix(),
					CurrentPeriodEnd:   time.Now().Add(30 * 24 * time.Hour).Unix(),
				},
			},
		},
	}
}

func TestRequestChangeNoopIsConflict(t *testing.T) {
	userID := uuid.New()
	repo := &stubSubRepo{byUser: activeSub(userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)}
	svc := newSubService(t, repo, &stubSubUsers{}, &stubStripe{}, &stubSubPublisher{})

	_, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	if err == nil {
		t.Fatal("expected conflict")
	}
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if coded.Message() != "already subscribed to this plan" {
		t.Fatalf("expected verbatim message, got %q", coded.Message())
	}
}

func TestRequestChangeNewStartsCheckout(t *testing.T) {
	userID := uuid.New()
	api := &stubStripe{
		customer: &stripe.Customer{ID: "cus_new"},
		session:  &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/cs_123"},
	}
	svc := newSubService(t, &stubSubRepo{}, &stubSubUsers{user: &models.User{ID: userID, Email: "a@amoura.test"}}, api, &stubSubPublisher{})

	result, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("RequestChange: %v", err)
	}
	if result.Action != enums.ChangeActionNew {
		t.Fatalf("expected new action, got %s", result.Action)
	}
	if result.SessionID != "cs_123" || result.URL == "" {
		t.Fatalf("expected session details, got %+v", result)
	}
	if api.sessionParams == nil || *api.sessionParams.LineItems[0].Price != "price_plus_m" {
		t.Fatal("expected checkout for plus monthly price")
	}
	if got := api.sessionParams.SubscriptionData.Metadata["user_id"]; got != userID.String() {
		t.Fatalf("expected user metadata on subscription, got %q", got)
	}
}

func TestRequestChangeUpgradeAppliesImmediately(t *testing.T) {
	userID := uuid.New()
	current := activeSub(userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	repo := &stubSubRepo{byUser: current, byStripe: current}
	api := &stubStripe{
		liveSub:    stripeSubWithPrice("price_plus_m"),
		updatedSub: stripeSubWithPrice("price_elite_m"),
	}
	pub := &stubSubPublisher{}
	svc := newSubService(t, repo, &stubSubUsers{}, api, pub)

	result, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierElite, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("RequestChange: %v", err)
	}
	if result.Action != enums.ChangeActionUpgrade || !result.Updated {
		t.Fatalf("expected applied upgrade, got %+v", result)
	}
	if got := *api.updateParams.ProrationBehavior; got != "always_invoice" {
		t.Fatalf("expected prorated invoice, got %q", got)
	}
	if repo.updated == nil || repo.updated.Tier != enums.SubscriptionTierElite {
		t.Fatal("expected stored tier flipped to elite")
	}
	if pub.calls != 1 || pub.tier != enums.SubscriptionTierElite {
		t.Fatal("expected change published")
	}
}

func TestRequestChangeDowngradeSchedules(t *testing.T) {
	userID := uuid.New()
	current := activeSub(userID, enums.SubscriptionTierElite, enums.BillingIntervalMonthly)
	repo := &stubSubRepo{byUser: current, byStripe: current}
	api := &stubStripe{}
	svc := newSubService(t, repo, &stubSubUsers{}, api, &stubSubPublisher{})

	result, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("RequestChange: %v", err)
	}
	if result.Action != enums.ChangeActionDowngrade {
		t.Fatalf("expected downgrade, got %s", result.Action)
	}
	if repo.updated == nil || repo.updated.PendingDowngradeTier == nil || *repo.updated.PendingDowngradeTier != enums.SubscriptionTierPlus {
		t.Fatal("expected pending downgrade stored")
	}
	if api.updateParams != nil {
		t.Fatal("downgrade must not touch stripe until period end")
	}
	if result.EffectiveAt == nil || !result.EffectiveAt.Equal(current.CurrentPeriodEnd) {
		t.Fatal("expected downgrade effective at period end")
	}
}

func TestRequestChangeDowngradeBlockedByCancellation(t *testing.T) {
	userID := uuid.New()
	current := activeSub(userID, enums.SubscriptionTierElite, enums.BillingIntervalMonthly)
	current.CancelAtPeriodEnd = true
	repo := &stubSubRepo{byUser: current, byStripe: current}
	svc := newSubService(t, repo, &stubSubUsers{}, &stubStripe{}, &stubSubPublisher{})

	_, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestRequestChangeIntervalChangeCreditsUnusedTime(t *testing.T) {
	userID := uuid.New()
	current := activeSub(userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	repo := &stubSubRepo{byUser: current, byStripe: current}
	api := &stubStripe{
		liveSub:    stripeSubWithPrice("price_plus_m"),
		updatedSub: stripeSubWithPrice("price_plus_q"),
		price:      &stripe.Price{ID: "price_plus_m", UnitAmount: 3000, Currency: stripe.CurrencyUSD},
	}
	svc := newSubService(t, repo, &stubSubUsers{}, api, &stubSubPublisher{})

	result, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierPlus, enums.BillingIntervalQuarterly)
	if err != nil {
		t.Fatalf("RequestChange: %v", err)
	}
	if result.Action != enums.ChangeActionIntervalChange {
		t.Fatalf("expected interval change, got %s", result.Action)
	}
	if got := *api.updateParams.ProrationBehavior; got != "none" {
		t.Fatalf("expected no stripe proration, got %q", got)
	}
	if api.updateParams.BillingCycleAnchorNow == nil || !*api.updateParams.BillingCycleAnchorNow {
		t.Fatal("expected billing cycle reset")
	}
	if api.credit == nil {
		t.Fatal("expected unused time credited")
	}
	if *api.credit.Amount >= 0 {
		t.Fatalf("credit must be negative, got %d", *api.credit.Amount)
	}
	// 20 of 30 days remain on a 3000-cent price.
	if *api.credit.Amount < -2100 || *api.credit.Amount > -1900 {
		t.Fatalf("unexpected credit amount %d", *api.credit.Amount)
	}
	if repo.updated == nil || *repo.updated.Interval != enums.BillingIntervalQuarterly {
		t.Fatal("expected stored interval updated")
	}
}

func TestRequestChangeFreeTargetRoutesToPortal(t *testing.T) {
	userID := uuid.New()
	current := activeSub(userID, enums.SubscriptionTierPlus, enums.BillingIntervalMonthly)
	api := &stubStripe{portal: &stripe.BillingPortalSession{URL: "https://billing.stripe.com/p/123"}}
	svc := newSubService(t, &stubSubRepo{byUser: current}, &stubSubUsers{}, api, &stubSubPublisher{})

	result, err := svc.RequestChange(context.Background(), userID, enums.SubscriptionTierFree, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("RequestChange: %v", err)
	}
	if result.Action != enums.ChangeActionPortal || result.URL == "" {
		t.Fatalf("expected portal URL, got %+v", result)
	}
}

func TestPortalURLRequiresBillingAccount(t *testing.T) {
	svc := newSubService(t, &stubSubRepo{}, &stubSubUsers{}, &stubStripe{}, &stubSubPublisher{})

	_, err := svc.PortalURL(context.Background(), uuid.New())
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeFailedPrecondition {
		t.Fatalf("expected FAILED_PRECONDITION, got %v", err)
	}
}

func TestApplyDueDowngrades(t *testing.T) {
	userID := uuid.New()
	sub := activeSub(userID, enums.SubscriptionTierElite, enums.BillingIntervalMonthly)
	pending := enums.SubscriptionTierPlus
	due := *sub
	due.PendingDowngradeTier = &pending
	past := time.Now().Add(-time.Hour)
	due.PendingDowngradeDate = &past

	repo := &stubSubRepo{byStripe: sub, due: []models.Subscription{due}}
	api := &stubStripe{
		liveSub:    stripeSubWithPrice("price_elite_m"),
		updatedSub: stripeSubWithPrice("price_plus_m"),
	}
	pub := &stubSubPublisher{}
	svc := newSubService(t, repo, &stubSubUsers{}, api, pub)

	applied, err := svc.ApplyDueDowngrades(context.Background(), time.Now(), 10)
	if err != nil {
		t.Fatalf("ApplyDueDowngrades: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected one applied, got %d", applied)
	}
	if got := *api.updateParams.ProrationBehavior; got != "none" {
		t.Fatalf("downgrade must not prorate, got %q", got)
	}
	if repo.updated == nil || repo.updated.Tier != enums.SubscriptionTierPlus {
		t.Fatal("expected stored tier downgraded")
	}
	if repo.updated.PendingDowngradeTier != nil {
		t.Fatal("expected pending fields cleared")
	}
	if pub.calls != 1 {
		t.Fatal("expected change published")
	}
}
