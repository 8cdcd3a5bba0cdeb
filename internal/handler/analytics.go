package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/qrtracker/internal/middleware"
)

func (h *Handler) AnalyticsHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.GetUserIDFromContext(ctx)

	analytics, err := h.qrCodes.Analytics(ctx, userID, chi.URLParam(r, "qrCodeId"))
	if err != nil {
		h.writeServiceError(rw, err, "failed to load analytics")
		return
	}

	h.writeJSON(rw, http.StatusOK, analytics)
}
