package controllers

import (
	"net/http"

	"github.com/amouradev/amoura-backend/api/responses"
	"github.com/amouradev/amoura-backend/api/validators"
	"github.com/amouradev/amoura-backend/internal/photos"
	"github.com/amouradev/amoura-backend/pkg/logger"
)

type photoPrivacyRequest struct {
	PhotoURL  string `json:"photo_url" validate:"required"`
	IsPrivate bool   `json:"is_private"`
}

type profilePhotoRequest struct {
	PhotoURL string `json:"photo_url" validate:"required"`
}

// PhotoPrivacy toggles a photo between public and private.
func PhotoPrivacy(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body photoPrivacyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetPrivacy(r.Context(), userID, body.PhotoURL, body.IsPrivate); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"is_private": body.IsPrivate})
	}
}

// PhotoProfile selects the caller's profile photo.
func PhotoProfile(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body profilePhotoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetProfilePhoto(r.Context(), userID, body.PhotoURL); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"profile_photo_url": body.PhotoURL})
	}
}

// PhotoList returns the caller's photos in gallery order.
func PhotoList(svc photos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"photos": list})
	}
}
