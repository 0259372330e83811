package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionsReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type changePublisher interface {
	ReputationChanged(ctx context.Context, userID uuid.UUID, tier enums.ReputationTier)
}

// Service exposes reputation tier refresh and the daily cross-tier
// conversation budget.
type Service interface {
	RefreshTier(ctx context.Context, userID uuid.UUID) (enums.ReputationTier, error)
	Budget(ctx context.Context, userID uuid.UUID) (*Budget, error)
	// ConsumeHigherTierConversation spends one unit of the daily budget.
	// The messaging subsystem calls this when a new cross-tier
	// conversation starts.
	ConsumeHigherTierConversation(ctx context.Context, userID uuid.UUID) (*Budget, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	users     usersRepository
	subs      subscriptionsReader
	publisher changePublisher
	now       func() time.Time
}

// NewService builds the reputation service.
func NewService(repo Repository, tx txRunner, users usersRepository, subs subscriptionsReader, publisher changePublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reputation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if subs == nil {
		return nil, fmt.Errorf("subscriptions reader required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("change publisher required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		users:     users,
		subs:      subs,
		publisher: publisher,
		now:       time.Now,
	}, nil
}

func (s *service) RefreshTier(ctx context.Context, userID uuid.UUID) (enums.ReputationTier, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	tier := enums.ReputationTierForScore(user.TrustScore)
	if err := s.repo.UpdateTier(ctx, userID, tier); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update reputation tier")
	}

	s.publisher.ReputationChanged(ctx, userID, tier)
	return tier, nil
}

func (s *service) Budget(ctx context.Context, userID uuid.UUID) (*Budget, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	record, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reputation record")
	}

	premium, err := s.isPremium(ctx, userID)
	if err != nil {
		return nil, err
	}

	budget := HigherTierBudget(record, premium, s.now())
	return &budget, nil
}

func (s *service) ConsumeHigherTierConversation(ctx context.Context, userID uuid.UUID) (*Budget, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	premium, err := s.isPremium(ctx, userID)
	if err != nil {
		return nil, err
	}
	if premium {
		budget := HigherTierBudget(nil, true, s.now())
		return &budget, nil
	}

	now := s.now()
	day := UTCDay(now)

	var budget Budget
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := repo.LockByUserID(ctx, userID, day)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reputation record")
		}

		if record.CountersAsOf.Before(day) {
			record.HigherTierConversationsToday = 0
			record.CountersAsOf = day
		}

		current := HigherTierBudget(record, false, now)
		if !current.IsUnlimited && current.Remaining == 0 {
			budget = current
			return pkgerrors.New(pkgerrors.CodeRateLimit, "daily cross-tier conversation limit reached")
		}

		record.HigherTierConversationsToday++
		if err := repo.Save(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save reputation record")
		}

		budget = HigherTierBudget(record, false, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (s *service) isPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	return sub.IsPremium(), nil
}
