package enums

import "fmt"

// SubscriptionTier is a paid plan level purchased through the billing
// provider. Tiers are ordered: free < plus < elite.
type SubscriptionTier string

const (
	SubscriptionTierFree  SubscriptionTier = "free"
	SubscriptionTierPlus  SubscriptionTier = "plus"
	SubscriptionTierElite SubscriptionTier = "elite"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPlus,
	SubscriptionTierElite,
}

// String implements fmt.Stringer.
func (t SubscriptionTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier requires an active subscription.
func (t SubscriptionTier) IsPaid() bool {
	return t == SubscriptionTierPlus || t == SubscriptionTierElite
}

// Rank returns the position of the tier in the fixed order. Unknown tiers
// rank below free so comparisons stay deterministic.
func (t SubscriptionTier) Rank() int {
	switch t {
	case SubscriptionTierFree:
		return 0
	case SubscriptionTierPlus:
		return 1
	case SubscriptionTierElite:
		return 2
	}
	return -1
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
