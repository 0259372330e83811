package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amouradev/amoura-backend/pkg/logger"
)

type stubCounterStore struct {
	day   time.Time
	reset int64
	err   error
}

func (s *stubCounterStore) ResetStaleCounters(ctx context.Context, day time.Time) (int64, error) {
	s.day = day
	return s.reset, s.err
}

func TestReputationRolloverUsesUTCDay(t *testing.T) {
	store := &stubCounterStore{reset: 3}
	job, err := NewReputationRolloverJob(ReputationRolloverJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   store,
		Now: func() time.Time {
			// Late evening in a western timezone is already the next UTC day.
			loc := time.FixedZone("PST", -8*3600)
			return time.Date(2026, 3, 9, 22, 30, 0, 0, loc)
		},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !store.day.Equal(want) {
		t.Fatalf("expected rollover day %s, got %s", want, store.day)
	}
}

func TestReputationRolloverPropagatesError(t *testing.T) {
	store := &stubCounterStore{err: errors.New("db down")}
	job, err := NewReputationRolloverJob(ReputationRolloverJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   store,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error surfaced")
	}
}
