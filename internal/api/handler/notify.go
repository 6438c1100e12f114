package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/vmarinoff/firealert/internal/alerts"
	"github.com/vmarinoff/firealert/internal/api/respond"
)

// NotifyRun triggers a notification sweep. Meant for the external cron
// caller; guarded by a bearer secret.
// @Summary Run the notification sweep
// @Description Matches active subscriptions against confirmed reports and satellite hotspots and delivers pending alerts.
// @Tags internal
// @Produce json
// @Param Authorization header string true "Bearer CRON_SECRET"
// @Param subscription query int false "Limit the sweep to one subscription ID"
// @Param limit query int false "Override the per-source delivery cap"
// @Success 200 {object} alerts.Summary
// @Failure 401 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /internal/notify/run [post]
func (h *Handler) NotifyRun(w http.ResponseWriter, r *http.Request) {
	if h.cfg.CronSecret == "" {
		respond.WriteError(w, http.StatusServiceUnavailable, "DISABLED",
			"Sweep endpoint is disabled: CRON_SECRET is not configured")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.CronSecret)) != 1 {
		respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing bearer token")
		return
	}

	opts := alerts.Options{LimitPerSource: h.cfg.LimitPerSource}
	if v := r.URL.Query().Get("subscription"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "subscription must be a positive integer")
			return
		}
		opts.OnlySubscriptionID = id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return
		}
		opts.LimitPerSource = n
	}

	summary, err := h.runner.Run(r.Context(), opts)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "SWEEP_FAILED",
			"Notification sweep failed", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		alerts.Summary
	}{true, summary})
}
