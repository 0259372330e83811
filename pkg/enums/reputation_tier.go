package enums

import "fmt"

// ReputationTier is a trust-score-derived rank, independent of payment.
// Tiers are ordered: new < active < established < trusted < distinguished.
type ReputationTier string

const (
	ReputationTierNew           ReputationTier = "new"
	ReputationTierActive        ReputationTier = "active"
	ReputationTierEstablished   ReputationTier = "established"
	ReputationTierTrusted       ReputationTier = "trusted"
	ReputationTierDistinguished ReputationTier = "distinguished"
)

var validReputationTiers = []ReputationTier{
	ReputationTierNew,
	ReputationTierActive,
	ReputationTierEstablished,
	ReputationTierTrusted,
	ReputationTierDistinguished,
}

// ReputationTierConfig carries the per-tier limits.
type ReputationTierConfig struct {
	// DailyHigherTierConversations caps how many new conversations a user
	// may start per day with users above their reputation tier. -1 means
	// unlimited.
	DailyHigherTierConversations int
	// MaxPhotos caps the profile gallery size for non-premium users.
	MaxPhotos int
}

// String implements fmt.Stringer.
func (t ReputationTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t ReputationTier) IsValid() bool {
	for _, candidate := range validReputationTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Rank returns the position of the tier in the fixed order. Unknown tiers
// rank below new.
func (t ReputationTier) Rank() int {
	switch t {
	case ReputationTierNew:
		return 0
	case ReputationTierActive:
		return 1
	case ReputationTierEstablished:
		return 2
	case ReputationTierTrusted:
		return 3
	case ReputationTierDistinguished:
		return 4
	}
	return -1
}

// Config returns the limits for the tier. Unknown tiers fall back to the
// most conservative (new) configuration.
func (t ReputationTier) Config() ReputationTierConfig {
	switch t {
	case ReputationTierActive:
		return ReputationTierConfig{DailyHigherTierConversations: 3, MaxPhotos: 6}
	case ReputationTierEstablished:
		return ReputationTierConfig{DailyHigherTierConversations: 5, MaxPhotos: 9}
	case ReputationTierTrusted:
		return ReputationTierConfig{DailyHigherTierConversations: 10, MaxPhotos: 12}
	case ReputationTierDistinguished:
		return ReputationTierConfig{DailyHigherTierConversations: -1, MaxPhotos: 15}
	default:
		return ReputationTierConfig{DailyHigherTierConversations: 1, MaxPhotos: 4}
	}
}

// ReputationTierForScore maps a trust score onto a tier.
func ReputationTierForScore(score int) ReputationTier {
	switch {
	case score >= 900:
		return ReputationTierDistinguished
	case score >= 650:
		return ReputationTierTrusted
	case score >= 400:
		return ReputationTierEstablished
	case score >= 150:
		return ReputationTierActive
	default:
		return ReputationTierNew
	}
}

// ParseReputationTier converts raw input into a ReputationTier.
func ParseReputationTier(value string) (ReputationTier, error) {
	for _, candidate := range validReputationTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reputation tier %q", value)
}
