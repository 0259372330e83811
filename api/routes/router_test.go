package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/internal/access"
	"github.com/amouradev/amoura-backend/internal/auth"
	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/internal/subscription"
	pkgAuth "github.com/amouradev/amoura-backend/pkg/auth"
	"github.com/amouradev/amoura-backend/pkg/auth/session"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	"github.com/amouradev/amoura-backend/pkg/logger"
	"github.com/amouradev/amoura-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSessionChecker struct{}

func (stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) error {
	return nil
}

type stubAccessService struct{}

func (stubAccessService) Request(ctx context.Context, requesterID, ownerID uuid.UUID) (*access.RequestResult, error) {
	return &access.RequestResult{Status: enums.AccessRequestStatusPending}, nil
}

func (stubAccessService) Cancel(ctx context.Context, requesterID, ownerID uuid.UUID) error {
	return nil
}

func (stubAccessService) Respond(ctx context.Context, ownerID, requesterID uuid.UUID, response enums.AccessRequestStatus) error {
	return nil
}

func (stubAccessService) Revoke(ctx context.Context, ownerID, granteeID uuid.UUID) error {
	return nil
}

func (stubAccessService) Check(ctx context.Context, viewerID, ownerID uuid.UUID) (*access.CheckResult, error) {
	return &access.CheckResult{HasAccess: true}, nil
}

func (stubAccessService) ListRequests(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*access.RequestList, error) {
	return &access.RequestList{}, nil
}

func (stubAccessService) ListGrants(ctx context.Context, userID uuid.UUID, params pagination.Params) (*access.GrantList, error) {
	return &access.GrantList{}, nil
}

func (stubAccessService) Backfill(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return 0, nil
}

type stubPhotosService struct{}

func (stubPhotosService) SetPrivacy(ctx context.Context, userID uuid.UUID, photoURL string, isPrivate bool) error {
	return nil
}

func (stubPhotosService) SetProfilePhoto(ctx context.Context, userID uuid.UUID, photoURL string) error {
	return nil
}

func (stubPhotosService) List(ctx context.Context, userID uuid.UUID) ([]models.Photo, error) {
	return nil, nil
}

type stubSubscriptionService struct{}

func (stubSubscriptionService) RequestChange(ctx context.Context, userID uuid.UUID, tier enums.SubscriptionTier, interval enums.BillingInterval) (*subscription.ChangeResult, error) {
	return &subscription.ChangeResult{Updated: true}, nil
}

func (stubSubscriptionService) PortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	return "https://billing.example.com/session", nil
}

func (stubSubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (stubSubscriptionService) ApplyDueDowngrades(ctx context.Context, now time.Time, limit int) (int, error) {
	return 0, nil
}

type stubReputationService struct{}

func (stubReputationService) RefreshTier(ctx context.Context, userID uuid.UUID) (enums.ReputationTier, error) {
	return enums.ReputationTierActive, nil
}

func (stubReputationService) Budget(ctx context.Context, userID uuid.UUID) (*reputation.Budget, error) {
	return &reputation.Budget{Tier: enums.ReputationTierActive, DailyLimit: 3, Remaining: 3}, nil
}

func (stubReputationService) ConsumeHigherTierConversation(ctx context.Context, userID uuid.UUID) (*reputation.Budget, error) {
	return &reputation.Budget{Tier: enums.ReputationTierActive, DailyLimit: 3, UsedToday: 1, Remaining: 2}, nil
}

type stubReputationRepo struct{}

func (stubReputationRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ReputationRecord, error) {
	return &models.ReputationRecord{UserID: userID, Tier: enums.ReputationTierActive}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "amoura",
			ExpirationMinutes: 30,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:         cfg,
		Logger:         logg,
		DB:             stubPinger{},
		SessionChecker: stubSessionChecker{},
		Auth:           stubAuthService{},
		Register:       stubRegisterService{},
		Access:         stubAccessService{},
		Photos:         stubPhotosService{},
		Subscriptions:  stubSubscriptionService{},
		Reputation:     stubReputationService{},
		ReputationRepo: stubReputationRepo{},
	})
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestProtectedRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, path := range []string{
		"/api/v1/entitlements",
		"/api/v1/access/requests",
		"/api/v1/reputation/budget",
		"/api/v1/subscriptions/",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without token, got %d", path, resp.Code)
		}
	}
}

func TestProtectedRouteSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reputation/budget", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	var payload struct {
		Data reputation.Budget `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Data.DailyLimit != 3 {
		t.Fatalf("unexpected budget payload: %+v", payload.Data)
	}
}

func TestEntitlementsResolvesCapabilities(t *testing.T) {
	cfg := testConfig()
	cfg.Entitlements.PremiumMaxPhotos = 30
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entitlements", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	var payload struct {
		Data struct {
			Tier      enums.SubscriptionTier `json:"tier"`
			MaxPhotos int                    `json:"max_photos"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Data.Tier != enums.SubscriptionTierFree {
		t.Fatalf("expected free tier without subscription, got %s", payload.Data.Tier)
	}
}

func TestAccessCheckParsesTargetParam(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/access/check/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/access/check/not-a-uuid", nil)
	bad.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, bad)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed target id, got %d", resp.Code)
	}
}

func TestSubscriptionCheckoutValidatesTier(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	body := strings.NewReader(`{"tier":"platinum","interval":"monthly"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/checkout", body)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown tier, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestWebhookRouteIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())

	// No bearer token: the route must not be behind Auth. The stubbed
	// wiring has no webhook service, so a 500 proves the route matched.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader("{}"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code == http.StatusUnauthorized || resp.Code == http.StatusNotFound {
		t.Fatalf("webhook route should be public and registered, got %d", resp.Code)
	}
}
