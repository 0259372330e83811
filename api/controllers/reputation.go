package controllers

import (
	"net/http"

	"github.com/amouradev/amoura-backend/api/responses"
	"github.com/amouradev/amoura-backend/internal/reputation"
	"github.com/amouradev/amoura-backend/pkg/enums"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

// ReputationRefresh recomputes the caller's reputation tier from their
// current trust score.
func ReputationRefresh(svc reputation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := svc.RefreshTier(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]enums.ReputationTier{"tier": tier})
	}
}

// ReputationBudget returns the caller's remaining cross-tier conversation
// budget for the current UTC day.
func ReputationBudget(svc reputation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		budget, err := svc.Budget(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, budget)
	}
}

// ReputationConsumeConversation spends one unit of the caller's daily
// cross-tier budget. The messaging subsystem calls this when a new
// cross-tier conversation starts.
func ReputationConsumeConversation(svc reputation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		budget, err := svc.ConsumeHigherTierConversation(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, budget)
	}
}
