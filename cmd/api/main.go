package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/amouradev/amoura-backend/api/routes"
	"github.com/amouradev/amoura-backend/internal/access"
	"github.com/amouradev/amoura-backend/internal/auth"
	"github.com/amouradev/amoura-backend/internal/events"
	"github.com/amouradev/amoura-backend/internal/photos"
	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/internal/subscription"
	"github.com/amouradev/amoura-backend/internal/users"
	"github.com/amouradev/amoura-backend/internal/watch"
	stripewebhook "github.com/amouradev/amoura-backend/internal/webhooks/stripe"
	"github.com/amouradev/amoura-backend/pkg/auth/session"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db"
	"github.com/amouradev/amoura-backend/pkg/logger"
	"github.com/amouradev/amoura-backend/pkg/migrate"
	"github.com/amouradev/amoura-backend/pkg/pubsub"
	"github.com/amouradev/amoura-backend/pkg/redis"
	pkgstripe "github.com/amouradev/amoura-backend/pkg/stripe"
)

const webhookMarkerTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := watch.NewRegistry()
	defer registry.Close()

	publisher := events.NewPublisher(registry, nil, logg)
	if cfg.GCP.ProjectID != "" {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		publisher = events.NewPublisher(registry, psClient.DomainPublisher(), logg)
	}

	usersRepo := users.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	accessService, err := access.NewService(access.ServiceParams{
		Repo:              access.NewRepository(dbClient.DB()),
		Users:             usersRepo,
		TransactionRunner: dbClient,
		Publisher:         publisher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create access service", err)
		os.Exit(1)
	}

	photosService, err := photos.NewService(photos.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create photos service", err)
		os.Exit(1)
	}

	subscriptionRepo := subscription.NewRepository(dbClient.DB())

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	billingClient := subscription.NewStripeClient(stripeClient)

	subscriptionService, err := subscription.NewService(subscription.ServiceParams{
		Repo:              subscriptionRepo,
		Users:             usersRepo,
		TransactionRunner: dbClient,
		Stripe:            billingClient,
		Config:            cfg.Stripe,
		Publisher:         publisher,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	reputationRepo := reputation.NewRepository(dbClient.DB())
	reputationService, err := reputation.NewService(reputationRepo, dbClient, usersRepo, subscriptionRepo, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create reputation service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		SubscriptionRepo:  subscriptionRepo,
		StripeClient:      billingClient,
		TransactionRunner: dbClient,
		Publisher:         publisher,
		Config:            cfg.Stripe,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookMarkerTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			SessionChecker: sessionManager,
			Auth:           authService,
			Register:       registerService,
			Access:         accessService,
			Photos:         photosService,
			Subscriptions:  subscriptionService,
			Reputation:     reputationService,
			ReputationRepo: reputationRepo,
			StripeClient:   stripeClient,
			StripeWebhook:  webhookService,
			WebhookGuard:   webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
