package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/pkg/enums"
)

// AccessRequest is the single live request document per (owner, requester)
// pair asking to view the owner's private content.
type AccessRequest struct {
	ID          uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID     uuid.UUID                 `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_access_requests_pair"`
	RequesterID uuid.UUID                 `gorm:"column:requester_id;type:uuid;not null;uniqueIndex:idx_access_requests_pair"`
	Status      enums.AccessRequestStatus `gorm:"column:status;not null;default:'pending'"`
	RequestedAt time.Time                 `gorm:"column:requested_at;not null"`
	RespondedAt *time.Time                `gorm:"column:responded_at"`
}

// RespondedAtOr returns the response timestamp, or the fallback when unset.
func (r *AccessRequest) RespondedAtOr(fallback time.Time) time.Time {
	if r == nil || r.RespondedAt == nil {
		return fallback
	}
	return *r.RespondedAt
}

// AccessGrant exists iff the grantee may view the owner's private content.
// Always written and deleted together with its AccessReceived mirror.
type AccessGrant struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_access_grants_pair"`
	GranteeID uuid.UUID `gorm:"column:grantee_id;type:uuid;not null;uniqueIndex:idx_access_grants_pair"`
	GrantedAt time.Time `gorm:"column:granted_at;not null"`
}

// AccessReceived is the grantee-side read model of an AccessGrant.
type AccessReceived struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	GranteeID uuid.UUID `gorm:"column:grantee_id;type:uuid;not null;uniqueIndex:idx_access_received_pair"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_access_received_pair"`
	GrantedAt time.Time `gorm:"column:granted_at;not null"`
}
