package reputation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

// Repository exposes reputation record persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ReputationRecord, error)
	// LockByUserID loads the record FOR UPDATE, creating the default record
	// first when none exists. Must run inside a transaction.
	LockByUserID(ctx context.Context, userID uuid.UUID, day time.Time) (*models.ReputationRecord, error)
	Save(ctx context.Context, record *models.ReputationRecord) error
	UpdateTier(ctx context.Context, userID uuid.UUID, tier enums.ReputationTier) error
	// ResetStaleCounters zeroes counters whose day is before the given UTC
	// day. Returns the number of rows reset.
	ResetStaleCounters(ctx context.Context, day time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reputation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ReputationRecord, error) {
	var record models.ReputationRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) LockByUserID(ctx context.Context, userID uuid.UUID, day time.Time) (*models.ReputationRecord, error) {
	seed := models.ReputationRecord{
		UserID:       userID,
		Tier:         enums.ReputationTierNew,
		CountersAsOf: day,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}

	var record models.ReputationRecord
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Save(ctx context.Context, record *models.ReputationRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) UpdateTier(ctx context.Context, userID uuid.UUID, tier enums.ReputationTier) error {
	seed := models.ReputationRecord{
		UserID:       userID,
		Tier:         tier,
		CountersAsOf: UTCDay(time.Now()),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"tier": tier, "updated_at": time.Now().UTC()}),
		}).
		Create(&seed).Error
}

func (r *repository) ResetStaleCounters(ctx context.Context, day time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReputationRecord{}).
		Where("counters_as_of < ?", day).
		Updates(map[string]any{
			"higher_tier_conversations_today": 0,
			"counters_as_of":                  day,
		})
	return res.RowsAffected, res.Error
}
