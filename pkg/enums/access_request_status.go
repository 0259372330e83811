package enums

import "fmt"

// AccessRequestStatus tracks where a private-access request sits in its
// lifecycle.
type AccessRequestStatus string

const (
	AccessRequestStatusPending AccessRequestStatus = "pending"
	AccessRequestStatusGranted AccessRequestStatus = "granted"
	AccessRequestStatusDenied  AccessRequestStatus = "denied"
)

var validAccessRequestStatuses = []AccessRequestStatus{
	AccessRequestStatusPending,
	AccessRequestStatusGranted,
	AccessRequestStatusDenied,
}

// String implements fmt.Stringer.
func (s AccessRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s AccessRequestStatus) IsValid() bool {
	for _, candidate := range validAccessRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAccessRequestStatus converts raw input into an AccessRequestStatus.
func ParseAccessRequestStatus(value string) (AccessRequestStatus, error) {
	for _, candidate := range validAccessRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid access request status %q", value)
}
