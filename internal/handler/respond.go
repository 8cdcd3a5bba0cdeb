package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mmeshcher/qrtracker/internal/models"
	"github.com/mmeshcher/qrtracker/internal/service"
	"go.uber.org/zap"
)

func (h *Handler) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(rw http.ResponseWriter, status int, message string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(models.ErrorResponse{Error: message})
}

// writeServiceError maps service errors to HTTP statuses. Anything
// unrecognised is logged and reported as 500 with action as the message.
func (h *Handler) writeServiceError(rw http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidTarget):
		writeError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(rw, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrNotFound):
		writeError(rw, http.StatusNotFound, "qr code not found")
	case errors.Is(err, service.ErrInactive):
		writeError(rw, http.StatusGone, "qr code is inactive")
	default:
		h.logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		writeError(rw, http.StatusInternalServerError, action)
	}
}
