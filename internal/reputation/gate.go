package reputation

import (
	"time"

	"github.com/amouradev/amoura-backend/pkg/db/models"
	"github.com/amouradev/amoura-backend/pkg/enums"
)

// Budget describes the caller's cross-tier conversation allowance for the
// current day. Remaining is -1 whenever IsUnlimited is true, and never
// negative otherwise.
type Budget struct {
	Tier        enums.ReputationTier `json:"tier"`
	DailyLimit  int                  `json:"daily_limit"`
	UsedToday   int                  `json:"used_today"`
	Remaining   int                  `json:"remaining"`
	IsUnlimited bool                 `json:"is_unlimited"`
}

// ResolveTier returns the record's tier, defaulting to the lowest tier when
// the record is missing or carries an unknown value.
func ResolveTier(record *models.ReputationRecord) enums.ReputationTier {
	if record == nil || !record.Tier.IsValid() {
		return enums.ReputationTierNew
	}
	return record.Tier
}

// HigherTierBudget computes the daily cross-tier conversation budget.
//
// A premium subscription overrides reputation-based throttling entirely.
// Otherwise the record's override takes precedence over the tier
// configuration, and counters from a previous UTC day read as zero.
func HigherTierBudget(record *models.ReputationRecord, isPremium bool, now time.Time) Budget {
	if isPremium {
		return Budget{
			Tier:        ResolveTier(record),
			DailyLimit:  -1,
			UsedToday:   0,
			Remaining:   -1,
			IsUnlimited: true,
		}
	}

	tier := ResolveTier(record)
	limit := tier.Config().DailyHigherTierConversations
	if record != nil && record.DailyLimitOverride != nil {
		limit = *record.DailyLimitOverride
	}

	used := 0
	if record != nil && sameUTCDay(record.CountersAsOf, now) {
		used = record.HigherTierConversationsToday
	}

	if limit == -1 {
		return Budget{
			Tier:        tier,
			DailyLimit:  -1,
			UsedToday:   used,
			Remaining:   -1,
			IsUnlimited: true,
		}
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Budget{
		Tier:       tier,
		DailyLimit: limit,
		UsedToday:  used,
		Remaining:  remaining,
	}
}

// UTCDay truncates t to midnight UTC, the boundary used for counter resets.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func sameUTCDay(a, b time.Time) bool {
	return UTCDay(a).Equal(UTCDay(b))
}
