package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

type reputationCounterStore interface {
	ResetStaleCounters(ctx context.Context, day time.Time) (int64, error)
}

// ReputationRolloverJobParams configures the daily counter rollover.
type ReputationRolloverJobParams struct {
	Logger *logger.Logger
	Repo   reputationCounterStore
	Now    func() time.Time
}

// NewReputationRolloverJob builds the job that zeroes cross-tier
// conversation counters left over from previous UTC days. Reads already
// treat stale counters as zero; the job keeps the stored rows consistent
// with that view.
func NewReputationRolloverJob(params ReputationRolloverJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reputation repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &reputationRolloverJob{
		logg: params.Logger,
		repo: params.Repo,
		now:  now,
	}, nil
}

type reputationRolloverJob struct {
	logg *logger.Logger
	repo reputationCounterStore
	now  func() time.Time
}

func (j *reputationRolloverJob) Name() string { return "reputation-rollover" }

func (j *reputationRolloverJob) Run(ctx context.Context) error {
	day := reputation.UTCDay(j.now())
	reset, err := j.repo.ResetStaleCounters(ctx, day)
	if err != nil {
		return fmt.Errorf("reset stale counters: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"day":   day.Format("2006-01-02"),
		"reset": reset,
	})
	j.logg.Info(logCtx, "reputation counter rollover complete")
	return nil
}
