package enums

import "fmt"

// ChangeAction classifies a requested subscription change against the
// current subscription.
type ChangeAction string

const (
	// ChangeActionNew requires a full checkout flow.
	ChangeActionNew ChangeAction = "new"
	// ChangeActionUpgrade applies immediately with prorated charge.
	ChangeActionUpgrade ChangeAction = "upgrade"
	// ChangeActionDowngrade schedules the tier swap for period end.
	ChangeActionDowngrade ChangeAction = "downgrade"
	// ChangeActionIntervalChange swaps the billing cadence immediately and
	// credits unused time from the old cycle.
	ChangeActionIntervalChange ChangeAction = "interval_change"
	// ChangeActionNoop means the user is already on the requested plan.
	ChangeActionNoop ChangeAction = "noop"
	// ChangeActionPortal routes to the provider's self-service portal;
	// dropping to free is a cancellation, not a plan swap.
	ChangeActionPortal ChangeAction = "portal"
)

var validChangeActions = []ChangeAction{
	ChangeActionNew,
	ChangeActionUpgrade,
	ChangeActionDowngrade,
	ChangeActionIntervalChange,
	ChangeActionNoop,
	ChangeActionPortal,
}

// String implements fmt.Stringer.
func (a ChangeAction) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a ChangeAction) IsValid() bool {
	for _, candidate := range validChangeActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseChangeAction converts raw input into a ChangeAction.
func ParseChangeAction(value string) (ChangeAction, error) {
	for _, candidate := range validChangeActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change action %q", value)
}
