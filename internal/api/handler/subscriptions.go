package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/api/respond"
	"github.com/vmarinoff/firealert/internal/channel"
)

type createSubscriptionRequest struct {
	UserID         *int64  `json:"userId,omitempty"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	RadiusKm       float64 `json:"radiusKm"`
	NotifyReports  *bool   `json:"notifyReports,omitempty"`  // default true
	NotifyHotspots *bool   `json:"notifyHotspots,omitempty"` // default true
}

// CreateSubscription registers a new alert subscription.
// @Summary Create an alert subscription
// @Description Registers email and/or SMS fire alerts for a point and radius.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body createSubscriptionRequest true "Subscription"
// @Success 201 {object} alerts.Subscription
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/subscriptions [post]
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid JSON body", err.Error())
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.Email == "" && req.Phone == "" {
		respond.WriteError(w, http.StatusBadRequest, "NO_CONTACT", alerts.ErrNoContact.Error())
		return
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		respond.WriteError(w, http.StatusBadRequest, "BAD_EMAIL", "email address is not valid")
		return
	}
	if req.Phone != "" {
		normalized, err := channel.NormalizeBGPhone(req.Phone)
		if err != nil {
			respond.WriteErrorDetail(w, http.StatusBadRequest, "BAD_PHONE",
				"phone number is not a valid Bulgarian mobile number", err.Error())
			return
		}
		req.Phone = normalized
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		respond.WriteError(w, http.StatusBadRequest, "BAD_COORDS", "lat/lng out of range")
		return
	}

	notifyReports, notifyHotspots := true, true
	if req.NotifyReports != nil {
		notifyReports = *req.NotifyReports
	}
	if req.NotifyHotspots != nil {
		notifyHotspots = *req.NotifyHotspots
	}

	sub, err := h.store.Create(r.Context(), alerts.CreateParams{
		UserID:         req.UserID,
		Email:          req.Email,
		Phone:          req.Phone,
		Lat:            req.Lat,
		Lng:            req.Lng,
		RadiusKm:       req.RadiusKm,
		NotifyReports:  notifyReports,
		NotifyHotspots: notifyHotspots,
	})
	if err != nil {
		if errors.Is(err, alerts.ErrNoContact) {
			respond.WriteError(w, http.StatusBadRequest, "NO_CONTACT", err.Error())
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to create subscription", err.Error())
		return
	}

	respond.WriteJSONObject(w, http.StatusCreated, sub)
}

// Unsubscribe deactivates the subscription behind an emailed token link.
// Browser-facing, so it answers with a small HTML page.
// @Summary Unsubscribe from alerts
// @Description Deactivates the subscription carrying the token.
// @Tags subscriptions
// @Produce html
// @Param token query string true "Unsubscribe token"
// @Success 200 {string} string "HTML confirmation page"
// @Failure 404 {string} string "HTML error page"
// @Router /api/v1/unsubscribe [get]
func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respond.WriteHTML(w, http.StatusBadRequest, unsubscribePage("Missing token",
			"The unsubscribe link is incomplete. Please use the link from your alert email."))
		return
	}

	ok, err := h.store.DeactivateByToken(r.Context(), token)
	if err != nil {
		respond.WriteHTML(w, http.StatusInternalServerError, unsubscribePage("Something went wrong",
			"We could not process your request. Please try again later."))
		return
	}
	if !ok {
		respond.WriteHTML(w, http.StatusNotFound, unsubscribePage("Link expired",
			"This unsubscribe link is invalid or was already used."))
		return
	}

	respond.WriteHTML(w, http.StatusOK, unsubscribePage("You are unsubscribed",
		"You will no longer receive fire alerts for this location."))
}

func unsubscribePage(heading, body string) string {
	return "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>FireAlert</title></head>\n" +
		"<body style=\"font-family:sans-serif;max-width:480px;margin:48px auto;padding:16px;text-align:center\">\n" +
		"<h2>" + heading + "</h2>\n<p>" + body + "</p>\n</body>\n</html>"
}
