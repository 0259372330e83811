package photos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages gallery photo privacy and profile photo selection.
type Service interface {
	// SetPrivacy toggles a photo between public and private. The photo
	// currently serving as the profile photo cannot be made private; the
	// check runs inside the transaction under a user-row lock.
	SetPrivacy(ctx context.Context, userID uuid.UUID, photoURL string, isPrivate bool) error
	// SetProfilePhoto points the user row at the given photo and forces the
	// photo public in the same transaction.
	SetProfilePhoto(ctx context.Context, userID uuid.UUID, photoURL string) error
	List(ctx context.Context, userID uuid.UUID) ([]models.Photo, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the photos service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "photos repo required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) SetPrivacy(ctx context.Context, userID uuid.UUID, photoURL string, isPrivate bool) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if photoURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "photo url required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// The lock keeps a concurrent SetProfilePhoto from committing
		// between this check and the privacy write.
		if isPrivate {
			user, err := repo.LockUser(ctx, userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
			}
			if user.ProfilePhotoURL != nil && *user.ProfilePhotoURL == photoURL {
				return pkgerrors.New(pkgerrors.CodeValidation, "profile photo cannot be private")
			}
		}

		photo, err := repo.FindByUserAndURL(ctx, userID, photoURL)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "photo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup photo")
		}
		if photo.IsPrivate == isPrivate {
			return nil
		}
		if err := repo.SetPrivacy(ctx, photo.ID, isPrivate); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update photo privacy")
		}
		return nil
	})
}

func (s *service) SetProfilePhoto(ctx context.Context, userID uuid.UUID, photoURL string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if photoURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "photo url required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Same user-row lock as SetPrivacy, so the privacy check and the
		// profile flip cannot interleave.
		if _, err := repo.LockUser(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		photo, err := repo.FindByUserAndURL(ctx, userID, photoURL)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "photo not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup photo")
		}

		// The profile photo is public by definition, so a private pick is
		// flipped rather than rejected.
		if photo.IsPrivate {
			if err := repo.SetPrivacy(ctx, photo.ID, false); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish profile photo")
			}
		}
		if err := repo.SetUserProfilePhoto(ctx, userID, photo.URL); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile photo")
		}
		return nil
	})
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Photo, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list photos")
	}
	return rows, nil
}
