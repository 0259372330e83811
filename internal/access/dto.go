package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/amouradev/amoura-backend/pkg/enums"
)

// RequestResult reports the state of the pair after a request call.
type RequestResult struct {
	Status         enums.AccessRequestStatus `json:"status"`
	RequestedAt    time.Time                 `json:"requested_at"`
	AlreadyPending bool                      `json:"already_pending"`
}

// CheckResult is the viewer-facing access summary for a target user.
type CheckResult struct {
	HasAccess     bool                       `json:"has_access"`
	IsSelf        bool                       `json:"is_self,omitempty"`
	RequestStatus *enums.AccessRequestStatus `json:"request_status,omitempty"`
	RequestedAt   *time.Time                 `json:"requested_at,omitempty"`
}

// RequestListItem is one pending request in the owner's inbox.
type RequestListItem struct {
	RequesterID uuid.UUID `json:"requester_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequestList is the cursor-paginated pending request view.
type RequestList struct {
	Items        []RequestListItem `json:"items"`
	PendingCount int64             `json:"pending_count"`
	Cursor       string            `json:"cursor,omitempty"`
}

// GrantListItem is one standing grant, seen from either side.
type GrantListItem struct {
	UserID    uuid.UUID `json:"user_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// GrantList carries both directions of the granted-access view: grants the
// caller has issued and access the caller has received.
type GrantList struct {
	Granted  []GrantListItem `json:"granted"`
	Received []GrantListItem `json:"received"`
	Cursor   string          `json:"cursor,omitempty"`
}
