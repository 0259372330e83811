package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/api/controllers"
	webhookcontrollers "github.com/amouradev/amoura-backend/api/controllers/webhooks"
	"github.com/amouradev/amoura-backend/api/middleware"
	"github.com/amouradev/amoura-backend/internal/access"
	"github.com/amouradev/amoura-backend/internal/auth"
	"github.com/amouradev/amoura-backend/internal/photos"
	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/internal/subscription"
	stripewebhook "github.com/amouradev/amoura-backend/internal/webhooks/stripe"
	"github.com/amouradev/amoura-backend/pkg/auth/session"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/logger"
	"github.com/amouradev/amoura-backend/pkg/redis"
)

type reputationReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ReputationRecord, error)
}

type stripeSigner interface {
	SigningSecret() string
}

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionChecker session.AccessSessionChecker
	Auth           auth.Service
	Register       auth.RegisterService
	Access         access.Service
	Photos         photos.Service
	Subscriptions  subscription.Service
	Reputation     reputation.Service
	ReputationRepo reputationReader
	StripeClient   stripeSigner
	StripeWebhook  *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.WebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		if p.Redis != nil {
			r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Register, p.Auth, logg))
		} else {
			r.Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.Post("/register", controllers.AuthRegister(p.Register, p.Auth, logg))
		}
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, p.SessionChecker, logg)).Post("/logout", controllers.AuthLogout(p.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Route("/access", func(r chi.Router) {
			r.Post("/request", controllers.AccessRequest(p.Access, logg))
			r.Post("/cancel", controllers.AccessCancel(p.Access, logg))
			r.Post("/respond", controllers.AccessRespond(p.Access, logg))
			r.Post("/revoke", controllers.AccessRevoke(p.Access, logg))
			r.Get("/check/{targetUserID}", controllers.AccessCheck(p.Access, logg))
			r.Get("/requests", controllers.AccessRequests(p.Access, logg))
			r.Get("/grants", controllers.AccessGrants(p.Access, logg))
			r.Post("/backfill", controllers.AccessBackfill(p.Access, logg))
		})

		r.Route("/photos", func(r chi.Router) {
			r.Get("/", controllers.PhotoList(p.Photos, logg))
			r.Post("/privacy", controllers.PhotoPrivacy(p.Photos, logg))
			r.Post("/profile", controllers.PhotoProfile(p.Photos, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionFetch(p.Subscriptions, logg))
			r.Post("/checkout", controllers.SubscriptionCheckout(p.Subscriptions, logg))
			r.Post("/portal", controllers.SubscriptionPortal(p.Subscriptions, logg))
		})

		r.Route("/reputation", func(r chi.Router) {
			r.Post("/refresh", controllers.ReputationRefresh(p.Reputation, logg))
			r.Get("/budget", controllers.ReputationBudget(p.Reputation, logg))
			r.Post("/conversations", controllers.ReputationConsumeConversation(p.Reputation, logg))
		})

		r.Get("/entitlements", controllers.Entitlements(p.Subscriptions, p.ReputationRepo, cfg.Entitlements, logg))
	})

	return r
}
