package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/amouradev/amoura-backend/pkg/logger"
)

const defaultDowngradeLimit = 250

type downgradeApplier interface {
	ApplyDueDowngrades(ctx context.Context, now time.Time, limit int) (int, error)
}

// SubscriptionDowngradeJobParams configures the scheduled downgrade sweep.
type SubscriptionDowngradeJobParams struct {
	Logger        *logger.Logger
	Subscriptions downgradeApplier
	Limit         int
	Now           func() time.Time
}

// NewSubscriptionDowngradeJob builds the job that applies downgrades whose
// scheduled date has passed. The webhook usually lands the change first;
// the sweep catches subscriptions the webhook missed.
func NewSubscriptionDowngradeJob(params SubscriptionDowngradeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDowngradeLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionDowngradeJob{
		logg:  params.Logger,
		subs:  params.Subscriptions,
		limit: limit,
		now:   now,
	}, nil
}

type subscriptionDowngradeJob struct {
	logg  *logger.Logger
	subs  downgradeApplier
	limit int
	now   func() time.Time
}

func (j *subscriptionDowngradeJob) Name() string { return "subscription-downgrade" }

func (j *subscriptionDowngradeJob) Run(ctx context.Context) error {
	applied, err := j.subs.ApplyDueDowngrades(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("apply due downgrades: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "applied", applied)
	j.logg.Info(logCtx, "subscription downgrade sweep complete")
	return nil
}
