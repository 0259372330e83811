package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amouradev/amoura-backend/pkg/logger"
)

type stubDowngradeApplier struct {
	limit   int
	applied int
	err     error
}

func (s *stubDowngradeApplier) ApplyDueDowngrades(ctx context.Context, now time.Time, limit int) (int, error) {
	s.limit = limit
	return s.applied, s.err
}

func TestSubscriptionDowngradeJobDefaultsLimit(t *testing.T) {
	applier := &stubDowngradeApplier{applied: 2}
	job, err := NewSubscriptionDowngradeJob(SubscriptionDowngradeJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Subscriptions: applier,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if applier.limit != defaultDowngradeLimit {
		t.Fatalf("expected default limit %d, got %d", defaultDowngradeLimit, applier.limit)
	}
}

func TestSubscriptionDowngradeJobPropagatesError(t *testing.T) {
	applier := &stubDowngradeApplier{err: errors.New("stripe unavailable")}
	job, err := NewSubscriptionDowngradeJob(SubscriptionDowngradeJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test"}),
		Subscriptions: applier,
		Limit:         10,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error surfaced")
	}
}
