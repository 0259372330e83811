package access

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	"github.com/amouradev/amoura-backend/pkg/pagination"
)

type listQuery struct {
	limit  int
	cursor *pagination.Cursor
}

// Repository exposes access request, grant, and mirror persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindRequest(ctx context.Context, ownerID, requesterID uuid.UUID) (*models.AccessRequest, error)
	CreateRequest(ctx context.Context, request *models.AccessRequest) error
	UpdateRequest(ctx context.Context, request *models.AccessRequest) error
	DeleteRequest(ctx context.Context, ownerID, requesterID uuid.UUID) error
	ListPendingRequests(ctx context.Context, ownerID uuid.UUID, q listQuery) ([]models.AccessRequest, error)
	CountPendingRequests(ctx context.Context, ownerID uuid.UUID) (int64, error)

	FindGrant(ctx context.Context, ownerID, granteeID uuid.UUID) (*models.AccessGrant, error)
	// EnsureGrant creates the grant if missing. Reports whether a row was
	// created.
	EnsureGrant(ctx context.Context, grant *models.AccessGrant) (bool, error)
	DeleteGrant(ctx context.Context, ownerID, granteeID uuid.UUID) error
	ListGrants(ctx context.Context, ownerID uuid.UUID, q listQuery) ([]models.AccessGrant, error)
	ListAllGrants(ctx context.Context, ownerID uuid.UUID) ([]models.AccessGrant, error)

	// EnsureReceived creates the grantee-side mirror if missing. Reports
	// whether a row was created.
	EnsureReceived(ctx context.Context, received *models.AccessReceived) (bool, error)
	DeleteReceived(ctx context.Context, granteeID, ownerID uuid.UUID) error
	ListReceived(ctx context.Context, granteeID uuid.UUID, q listQuery) ([]models.AccessReceived, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an access repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRequest(ctx context.Context, ownerID, requesterID uuid.UUID) (*models.AccessRequest, error) {
	var request models.AccessRequest
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND requester_id = ?", ownerID, requesterID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) CreateRequest(ctx context.Context, request *models.AccessRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) UpdateRequest(ctx context.Context, request *models.AccessRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) DeleteRequest(ctx context.Context, ownerID, requesterID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND requester_id = ?", ownerID, requesterID).
		Delete(&models.AccessRequest{}).Error
}

func (r *repository) ListPendingRequests(ctx context.Context, ownerID uuid.UUID, q listQuery) ([]models.AccessRequest, error) {
	var rows []models.AccessRequest
	query := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, enums.AccessRequestStatusPending).
		Order("requested_at DESC, id DESC")
	if q.cursor != nil {
		query = query.Where(
			"(requested_at < ?) OR (requested_at = ? AND id < ?)",
			q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID,
		)
	}
	if q.limit > 0 {
		query = query.Limit(q.limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountPendingRequests(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccessRequest{}).
		Where("owner_id = ? AND status = ?", ownerID, enums.AccessRequestStatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) FindGrant(ctx context.Context, ownerID, granteeID uuid.UUID) (*models.AccessGrant, error) {
	var grant models.AccessGrant
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND grantee_id = ?", ownerID, granteeID).
		First(&grant).Error
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

func (r *repository) EnsureGrant(ctx context.Context, grant *models.AccessGrant) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(grant)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteGrant(ctx context.Context, ownerID, granteeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND grantee_id = ?", ownerID, granteeID).
		Delete(&models.AccessGrant{}).Error
}

func (r *repository) ListGrants(ctx context.Context, ownerID uuid.UUID, q listQuery) ([]models.AccessGrant, error) {
	var rows []models.AccessGrant
	query := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("granted_at DESC, id DESC")
	if q.cursor != nil {
		query = query.Where(
			"(granted_at < ?) OR (granted_at = ? AND id < ?)",
			q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID,
		)
	}
	if q.limit > 0 {
		query = query.Limit(q.limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAllGrants(ctx context.Context, ownerID uuid.UUID) ([]models.AccessGrant, error) {
	var rows []models.AccessGrant
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("granted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) EnsureReceived(ctx context.Context, received *models.AccessReceived) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(received)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteReceived(ctx context.Context, granteeID, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("grantee_id = ? AND owner_id = ?", granteeID, ownerID).
		Delete(&models.AccessReceived{}).Error
}

func (r *repository) ListReceived(ctx context.Context, granteeID uuid.UUID, q listQuery) ([]models.AccessReceived, error) {
	var rows []models.AccessReceived
	query := r.db.WithContext(ctx).
		Where("grantee_id = ?", granteeID).
		Order("granted_at DESC, id DESC")
	if q.cursor != nil {
		query = query.Where(
			"(granted_at < ?) OR (granted_at = ? AND id < ?)",
			q.cursor.CreatedAt, q.cursor.CreatedAt, q.cursor.ID,
		)
	}
	if q.limit > 0 {
		query = query.Limit(q.limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
