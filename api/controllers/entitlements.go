package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amouradev/amoura-backend/api/responses"
	"github.com/amouradev/amoura-backend/internal/entitlement"
	"github.com/amouradev/amoura-backend/internal/subscription"
	"github.com/amouradev/amoura-backend/pkg/config"
	"github.com/amouradev/amoura-backend/pkg/db/models"
	pkgerrors "github.com/amouradev/amoura-backend/pkg/errors"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

type reputationReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.ReputationRecord, error)
}

// Entitlements resolves the caller's capability set from their subscription
// and reputation rows.
func Entitlements(subs subscription.Service, reps reputationReader, cfg config.EntitlementsConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := subs.Current(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := reps.FindByUserID(r.Context(), userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reputation"))
			return
		}

		set := entitlement.Resolve(sub, record, cfg, time.Now().UTC())
		responses.WriteSuccess(w, set)
	}
}
