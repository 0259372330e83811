package access

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
	"github.com/amouradev/amoura-backend/pkg/pagination"
)

func setupAccessTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	requests := `
CREATE TABLE IF NOT EXISTS access_requests (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  requester_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  requested_at DATETIME NOT NULL,
  responded_at DATETIME,
  UNIQUE (owner_id, requester_id)
);`
	grants := `
CREATE TABLE IF NOT EXISTS access_grants (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  grantee_id TEXT NOT NULL,
  granted_at DATETIME NOT NULL,
  UNIQUE (owner_id, grantee_id)
);`
	received := `
CREATE TABLE IF NOT EXISTS access_received (
  id TEXT PRIMARY KEY,
  grantee_id TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  granted_at DATETIME NOT NULL,
  UNIQUE (grantee_id, owner_id)
);`
	require.NoError(t, db.Exec(requests).Error)
	require.NoError(t, db.Exec(grants).Error)
	require.NoError(t, db.Exec(received).Error)
	return db
}

func createRequest(t *testing.T, db *gorm.DB, owner, requester uuid.UUID, status enums.AccessRequestStatus, requested time.Time) *models.AccessRequest {
	t.Helper()

	request := &models.AccessRequest{
		ID:          uuid.New(),
		OwnerID:     owner,
		RequesterID: requester,
		Status:      status,
		RequestedAt: requested,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func createGrant(t *testing.T, db *gorm.DB, owner, grantee uuid.UUID, granted time.Time) *models.AccessGrant {
	t.Helper()

	grant := &models.AccessGrant{
		ID:        uuid.New(),
		OwnerID:   owner,
		GranteeID: grantee,
		GrantedAt: granted,
	}
	require.NoError(t, db.Create(grant).Error)
	return grant
}

func TestRepositoryRequestLifecycle(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	requester := uuid.New()
	requested := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.FindRequest(ctx, owner, requester)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.CreateRequest(ctx, &models.AccessRequest{
		ID:          uuid.New(),
		OwnerID:     owner,
		RequesterID: requester,
		Status:      enums.AccessRequestStatusPending,
		RequestedAt: requested,
	}))

	found, err := repo.FindRequest(ctx, owner, requester)
	require.NoError(t, err)
	assert.Equal(t, enums.AccessRequestStatusPending, found.Status)

	responded := requested.Add(time.Hour)
	found.Status = enums.AccessRequestStatusGranted
	found.RespondedAt = &responded
	require.NoError(t, repo.UpdateRequest(ctx, found))

	updated, err := repo.FindRequest(ctx, owner, requester)
	require.NoError(t, err)
	assert.Equal(t, enums.AccessRequestStatusGranted, updated.Status)
	require.NotNil(t, updated.RespondedAt)

	require.NoError(t, repo.DeleteRequest(ctx, owner, requester))
	_, err = repo.FindRequest(ctx, owner, requester)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListPendingRequests_pagination(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		createRequest(t, db, owner, uuid.New(), enums.AccessRequestStatusPending, base.Add(time.Duration(i)*time.Minute))
	}
	// Responded requests never show up in the pending inbox.
	createRequest(t, db, owner, uuid.New(), enums.AccessRequestStatusDenied, base.Add(time.Hour))
	createRequest(t, db, uuid.New(), uuid.New(), enums.AccessRequestStatusPending, base)

	count, err := repo.CountPendingRequests(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	first, err := repo.ListPendingRequests(ctx, owner, listQuery{limit: 3})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.True(t, first[0].RequestedAt.After(first[2].RequestedAt))

	last := first[len(first)-1]
	rest, err := repo.ListPendingRequests(ctx, owner, listQuery{
		limit:  3,
		cursor: &pagination.Cursor{CreatedAt: last.RequestedAt, ID: last.ID},
	})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	for _, row := range rest {
		assert.True(t, row.RequestedAt.Before(last.RequestedAt))
	}
}

func TestRepositoryEnsureGrantIdempotent(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	grantee := uuid.New()
	granted := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	created, err := repo.EnsureGrant(ctx, &models.AccessGrant{
		ID:        uuid.New(),
		OwnerID:   owner,
		GranteeID: grantee,
		GrantedAt: granted,
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.EnsureGrant(ctx, &models.AccessGrant{
		ID:        uuid.New(),
		OwnerID:   owner,
		GranteeID: grantee,
		GrantedAt: granted.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, created)

	grant, err := repo.FindGrant(ctx, owner, grantee)
	require.NoError(t, err)
	assert.Equal(t, granted, grant.GrantedAt.UTC())

	require.NoError(t, repo.DeleteGrant(ctx, owner, grantee))
	_, err = repo.FindGrant(ctx, owner, grantee)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListGrants(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	base := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		createGrant(t, db, owner, uuid.New(), base.Add(time.Duration(i)*time.Minute))
	}
	createGrant(t, db, uuid.New(), uuid.New(), base)

	page, err := repo.ListGrants(ctx, owner, listQuery{limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].GrantedAt.After(page[1].GrantedAt))

	all, err := repo.ListAllGrants(ctx, owner)
	require.NoError(t, err)
	require.Len(t, all, 4)
	// ListAllGrants walks oldest first so backfill replays in grant order.
	assert.True(t, all[0].GrantedAt.Before(all[3].GrantedAt))
}

func TestRepositoryReceivedMirror(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	grantee := uuid.New()
	owner := uuid.New()
	granted := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	created, err := repo.EnsureReceived(ctx, &models.AccessReceived{
		ID:        uuid.New(),
		GranteeID: grantee,
		OwnerID:   owner,
		GrantedAt: granted,
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.EnsureReceived(ctx, &models.AccessReceived{
		ID:        uuid.New(),
		GranteeID: grantee,
		OwnerID:   owner,
		GrantedAt: granted,
	})
	require.NoError(t, err)
	assert.False(t, created)

	rows, err := repo.ListReceived(ctx, grantee, listQuery{limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, owner, rows[0].OwnerID)

	require.NoError(t, repo.DeleteReceived(ctx, grantee, owner))
	rows, err = repo.ListReceived(ctx, grantee, listQuery{limit: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryWithTx(t *testing.T) {
	db := setupAccessTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	requester := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).CreateRequest(ctx, &models.AccessRequest{
			ID:          uuid.New(),
			OwnerID:     owner,
			RequesterID: requester,
			Status:      enums.AccessRequestStatusPending,
			RequestedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	found, err := repo.FindRequest(ctx, owner, requester)
	require.NoError(t, err)
	assert.Equal(t, requester, found.RequesterID)
}
