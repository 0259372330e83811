package photos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amouradev/amoura-backend/pkg/db/models"
)

// Repository exposes photo persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserAndURL(ctx context.Context, userID uuid.UUID, url string) (*models.Photo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Photo, error)
	SetPrivacy(ctx context.Context, photoID uuid.UUID, isPrivate bool) error
	// LockUser loads the user row FOR UPDATE. The privacy check and the
	// profile flip both take this lock so they serialize against each
	// other.
	LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	// SetUserProfilePhoto updates users.profile_photo_url. Lives here so the
	// service can flip photo privacy and the user row in one transaction.
	SetUserProfilePhoto(ctx context.Context, userID uuid.UUID, url string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a photo repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserAndURL(ctx context.Context, userID uuid.UUID, url string) (*models.Photo, error) {
	var photo models.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND url = ?", userID, url).
		First(&photo).Error
	if err != nil {
		return nil, err
	}
	return &photo, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Photo, error) {
	var rows []models.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SetPrivacy(ctx context.Context, photoID uuid.UUID, isPrivate bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Photo{}).
		Where("id = ?", photoID).
		Update("is_private", isPrivate).Error
}

func (r *repository) LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetUserProfilePhoto(ctx context.Context, userID uuid.UUID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("profile_photo_url", url).Error
}
