package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/db"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
	"github.com/amouradev/amoura-backend/pkg/pagination"
)

// Change kinds fanned out after a successful lifecycle transition.
const (
	ChangeRequested = "requested"
	ChangeCanceled  = "canceled"
	ChangeGranted   = "granted"
	ChangeDenied    = "denied"
	ChangeRevoked   = "revoked"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usersRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type changePublisher interface {
	AccessChanged(ctx context.Context, ownerID, counterpartID uuid.UUID, kind string)
}

// Service owns the private-access request/grant/revoke lifecycle.
type Service interface {
	// Request asks the owner for access to their private content.
	Request(ctx context.Context, requesterID, ownerID uuid.UUID) (*RequestResult, error)
	// Cancel withdraws the caller's own pending request.
	Cancel(ctx context.Context, requesterID, ownerID uuid.UUID) error
	// Respond grants or denies a pending request addressed to the caller.
	Respond(ctx context.Context, ownerID, requesterID uuid.UUID, response enums.AccessRequestStatus) error
	// Revoke removes a standing grant issued by the caller.
	Revoke(ctx context.Context, ownerID, granteeID uuid.UUID) error
	Check(ctx context.Context, viewerID, ownerID uuid.UUID) (*CheckResult, error)
	ListRequests(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*RequestList, error)
	ListGrants(ctx context.Context, userID uuid.UUID, params pagination.Params) (*GrantList, error)
	// Backfill recreates missing grantee-side mirrors for the owner's
	// grants. Returns the number of mirrors created, zero when already
	// consistent.
	Backfill(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo              Repository
	Users             usersRepository
	TransactionRunner txRunner
	Publisher         changePublisher
}

type service struct {
	repo      Repository
	users     usersRepository
	tx        txRunner
	publisher changePublisher
	now       func() time.Time
}

// NewService builds the private-access service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "access repo required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Publisher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "change publisher required")
	}
	return &service{
		repo:      params.Repo,
		users:     params.Users,
		tx:        params.TransactionRunner,
		publisher: params.Publisher,
		now:       time.Now,
	}, nil
}

func (s *service) Request(ctx context.Context, requesterID, ownerID uuid.UUID) (*RequestResult, error) {
	if err := validatePair(requesterID, ownerID); err != nil {
		return nil, err
	}
	if requesterID == ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot request access to your own content")
	}
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}

	var result RequestResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindRequest(ctx, ownerID, requesterID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access request")
		}

		if existing != nil {
			switch existing.Status {
			case enums.AccessRequestStatusPending:
				// Repeat calls while pending return the existing state.
				result = RequestResult{
					Status:         enums.AccessRequestStatusPending,
					RequestedAt:    existing.RequestedAt,
					AlreadyPending: true,
				}
				return nil
			case enums.AccessRequestStatusGranted:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "access already granted")
			case enums.AccessRequestStatusDenied:
				// A denial does not block a fresh ask: the same row goes
				// back to pending with a new timestamp.
				existing.Status = enums.AccessRequestStatusPending
				existing.RequestedAt = s.now()
				existing.RespondedAt = nil
				if err := repo.UpdateRequest(ctx, existing); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen access request")
				}
				result = RequestResult{Status: enums.AccessRequestStatusPending, RequestedAt: existing.RequestedAt}
				return nil
			}
		}

		request := &models.AccessRequest{
			OwnerID:     ownerID,
			RequesterID: requesterID,
			Status:      enums.AccessRequestStatusPending,
			RequestedAt: s.now(),
		}
		if err := repo.CreateRequest(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "idx_access_requests_pair") {
				// Lost the insert race to a concurrent request. Read the
				// winner and answer like the repeat-call path.
				winner, findErr := repo.FindRequest(ctx, ownerID, requesterID)
				if findErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lookup access request")
				}
				if winner.Status == enums.AccessRequestStatusGranted {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "access already granted")
				}
				result = RequestResult{
					Status:         enums.AccessRequestStatusPending,
					RequestedAt:    winner.RequestedAt,
					AlreadyPending: true,
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create access request")
		}
		result = RequestResult{Status: enums.AccessRequestStatusPending, RequestedAt: request.RequestedAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyPending {
		s.publisher.AccessChanged(ctx, ownerID, requesterID, ChangeRequested)
	}
	return &result, nil
}

func (s *service) Cancel(ctx context.Context, requesterID, ownerID uuid.UUID) error {
	if err := validatePair(requesterID, ownerID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequest(ctx, ownerID, requesterID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no access request to cancel")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access request")
		}
		if request.Status != enums.AccessRequestStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending requests can be canceled")
		}
		if err := repo.DeleteRequest(ctx, ownerID, requesterID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete access request")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.AccessChanged(ctx, ownerID, requesterID, ChangeCanceled)
	return nil
}

func (s *service) Respond(ctx context.Context, ownerID, requesterID uuid.UUID, response enums.AccessRequestStatus) error {
	if err := validatePair(ownerID, requesterID); err != nil {
		return err
	}
	if response != enums.AccessRequestStatusGranted && response != enums.AccessRequestStatusDenied {
		return pkgerrors.New(pkgerrors.CodeValidation, "response must be grant or deny")
	}

	published := ""
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindRequest(ctx, ownerID, requesterID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "access request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access request")
		}

		switch {
		case request.Status == enums.AccessRequestStatusGranted && response == enums.AccessRequestStatusGranted:
			// Re-granting is a no-op success, but the grant and its mirror
			// must still end up present exactly once.
			return s.writeGrantPair(ctx, repo, ownerID, requesterID, request.RespondedAtOr(s.now()))
		case request.Status != enums.AccessRequestStatusPending:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request already resolved")
		}

		now := s.now()
		request.Status = response
		request.RespondedAt = &now
		if err := repo.UpdateRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update access request")
		}

		if response == enums.AccessRequestStatusGranted {
			if err := s.writeGrantPair(ctx, repo, ownerID, requesterID, now); err != nil {
				return err
			}
			published = ChangeGranted
			return nil
		}
		published = ChangeDenied
		return nil
	})
	if err != nil {
		return err
	}

	if published != "" {
		s.publisher.AccessChanged(ctx, ownerID, requesterID, published)
	}
	return nil
}

// writeGrantPair creates the grant and its grantee-side mirror inside the
// surrounding transaction. Both creates are idempotent.
func (s *service) writeGrantPair(ctx context.Context, repo Repository, ownerID, granteeID uuid.UUID, grantedAt time.Time) error {
	_, err := repo.EnsureGrant(ctx, &models.AccessGrant{
		OwnerID:   ownerID,
		GranteeID: granteeID,
		GrantedAt: grantedAt,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create access grant")
	}
	_, err = repo.EnsureReceived(ctx, &models.AccessReceived{
		GranteeID: granteeID,
		OwnerID:   ownerID,
		GrantedAt: grantedAt,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create access mirror")
	}
	return nil
}

func (s *service) Revoke(ctx context.Context, ownerID, granteeID uuid.UUID) error {
	if err := validatePair(ownerID, granteeID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindGrant(ctx, ownerID, granteeID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no access grant to revoke")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access grant")
		}

		// Grant, mirror, and the request row go together so a fresh
		// request can follow the revocation.
		if err := repo.DeleteGrant(ctx, ownerID, granteeID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete access grant")
		}
		if err := repo.DeleteReceived(ctx, granteeID, ownerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete access mirror")
		}
		if err := repo.DeleteRequest(ctx, ownerID, granteeID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete access request")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publisher.AccessChanged(ctx, ownerID, granteeID, ChangeRevoked)
	return nil
}

func (s *service) Check(ctx context.Context, viewerID, ownerID uuid.UUID) (*CheckResult, error) {
	if err := validatePair(viewerID, ownerID); err != nil {
		return nil, err
	}
	if viewerID == ownerID {
		return &CheckResult{HasAccess: true, IsSelf: true}, nil
	}

	if _, err := s.repo.FindGrant(ctx, ownerID, viewerID); err == nil {
		status := enums.AccessRequestStatusGranted
		return &CheckResult{HasAccess: true, RequestStatus: &status}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access grant")
	}

	request, err := s.repo.FindRequest(ctx, ownerID, viewerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &CheckResult{HasAccess: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup access request")
	}

	status := request.Status
	requestedAt := request.RequestedAt
	return &CheckResult{
		HasAccess:     false,
		RequestStatus: &status,
		RequestedAt:   &requestedAt,
	}, nil
}

func (s *service) ListRequests(ctx context.Context, ownerID uuid.UUID, params pagination.Params) (*RequestList, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := listQuery{limit: pagination.LimitWithBuffer(params.Limit)}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListPendingRequests(ctx, ownerID, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access requests")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: rows[limit].RequestedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	count, err := s.repo.CountPendingRequests(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count access requests")
	}

	items := make([]RequestListItem, len(rows))
	for i, row := range rows {
		items[i] = RequestListItem{
			RequesterID: row.RequesterID,
			RequestedAt: row.RequestedAt,
		}
	}
	return &RequestList{
		Items:        items,
		PendingCount: count,
		Cursor:       nextCursor,
	}, nil
}

func (s *service) ListGrants(ctx context.Context, userID uuid.UUID, params pagination.Params) (*GrantList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	query := listQuery{limit: pagination.LimitWithBuffer(params.Limit)}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	grants, err := s.repo.ListGrants(ctx, userID, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access grants")
	}

	nextCursor := ""
	if len(grants) > limit {
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: grants[limit].GrantedAt,
			ID:        grants[limit].ID,
		})
		grants = grants[:limit]
	}

	received, err := s.repo.ListReceived(ctx, userID, listQuery{limit: limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list received access")
	}

	result := &GrantList{
		Granted:  make([]GrantListItem, len(grants)),
		Received: make([]GrantListItem, len(received)),
		Cursor:   nextCursor,
	}
	for i, grant := range grants {
		result.Granted[i] = GrantListItem{UserID: grant.GranteeID, GrantedAt: grant.GrantedAt}
	}
	for i, row := range received {
		result.Received[i] = GrantListItem{UserID: row.OwnerID, GrantedAt: row.GrantedAt}
	}
	return result, nil
}

func (s *service) Backfill(ctx context.Context, ownerID uuid.UUID) (int, error) {
	if ownerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	created := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		grants, err := repo.ListAllGrants(ctx, ownerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list access grants")
		}
		for _, grant := range grants {
			made, err := repo.EnsureReceived(ctx, &models.AccessReceived{
				GranteeID: grant.GranteeID,
				OwnerID:   grant.OwnerID,
				GrantedAt: grant.GrantedAt,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "backfill access mirror")
			}
			if made {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *service) requireUser(ctx context.Context, id uuid.UUID) error {
	ok, err := s.users.Exists(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func validatePair(a, b uuid.UUID) error {
	if a == uuid.Nil || b == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	return nil
}
